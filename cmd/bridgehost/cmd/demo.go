package cmd

import (
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"

	"bridgekit/internal/app"
	"bridgekit/internal/asset"
	"bridgekit/internal/bridge"
	"bridgekit/internal/eventbus"
)

const demoTopic = "Broadcast.Msg"

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the storage, archive and broadcast walkthrough",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app.App) error {
			return runDemo(cmd.OutOrStdout(), a)
		})
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(out io.Writer, a *app.App) error {
	// console bridge: same store and bus as the app, log lines printed
	console := &bridge.Bridge{
		Logger: bridge.LogFunc(func(sev bridge.Severity, msg string) {
			fmt.Fprintf(out, "[%s] %s\n", sev, msg)
		}),
		Store: a.Store(),
		Bus:   a.Bus(),
	}

	versioned := a.NewAsset("Logger",
		asset.WithVersion("1.2.3"),
		asset.WithDependency("Storage", "1.0.0"),
		asset.WithDependency("Messages", "1.0.0"),
	)
	fmt.Fprintln(out, versioned.VersionReport())
	fmt.Fprintf(out, "Trying to re-register: %s -> %s\n",
		versioned.ID(), a.Assets().Register(versioned, versioned.Class()))

	if err := demoStorage(out, a.NewAsset("DialogueAsset", asset.WithVersion("1.0.0")), console); err != nil {
		return err
	}
	if err := demoBroadcast(out, a.Bus()); err != nil {
		return err
	}
	return demoSettings(out, a, console)
}

func demoStorage(out io.Writer, as *asset.Asset, console *bridge.Bridge) error {
	as.SetBridge(console)
	st, err := as.Bridge().Storage()
	if err != nil {
		return err
	}
	dump := func() error {
		names, err := st.ListFiles()
		if err != nil {
			return err
		}
		for _, n := range names {
			text, err := st.Load(n)
			if err != nil {
				return err
			}
			as.Log(bridge.Information, fmt.Sprintf("%s=%s", n, text))
		}
		return nil
	}

	as.Log(bridge.Information, "----[console.bridge]-----")
	if err := st.Save("Hello1.txt", "Hello World 1"); err != nil {
		return err
	}
	if err := st.Save("Hello2.txt", "Hello World 2"); err != nil {
		return err
	}
	if err := dump(); err != nil {
		return err
	}
	if _, err := st.Delete("Hello1.txt"); err != nil {
		return err
	}
	if err := dump(); err != nil {
		return err
	}
	if _, err := st.Archive("Hello2.txt"); err != nil {
		return err
	}
	archived, err := st.ListArchive()
	if err != nil {
		return err
	}
	for _, n := range archived {
		as.Log(bridge.Information, "archived: "+n)
	}

	// without a bridge the asset has no storage and logs nowhere
	as.SetBridge(nil)
	if _, err := as.Bridge().Storage(); err != nil {
		fmt.Fprintf(out, "no bridge: %v\n", err)
	}
	as.SetBridge(console)
	return nil
}

func demoBroadcast(out io.Writer, bus *eventbus.Bus) error {
	bus.Define(demoTopic)

	printer := func(suffix string) eventbus.Handler {
		return eventbus.Func(func(topic string, args eventbus.Args) {
			fmt.Fprintf(out, "[demo].%s: [%s]%s\n", topic, args, suffix)
		})
	}

	rounds := []struct {
		suffix string
		args   []any
	}{
		{"", []any{"hello", "from", "demo!"}},
		{" (func value)", []any{1, 2, math.Pi}},
		{" (closure)", []any{"hello", "from", "demo!"}},
	}
	for _, r := range rounds {
		id, err := bus.Subscribe(demoTopic, printer(r.suffix))
		if err != nil {
			return err
		}
		if err := bus.Publish(demoTopic, r.args...); err != nil {
			return err
		}
		bus.Unsubscribe(id)
	}
	return nil
}

func demoSettings(out io.Writer, a *app.App, console *bridge.Bridge) error {
	defaults := &asset.Settings{}
	defaults.Set("Volume", "0.8")
	defaults.Set("Language", "en")

	as := a.NewAsset("DialogueAsset", asset.WithSettings(defaults))
	as.SetBridge(console)
	if err := as.SaveDefaultSettings(false); err != nil {
		return err
	}
	if _, err := as.LoadDefaultSettings(); err != nil {
		return err
	}
	x, err := as.SettingsXML()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, x)
	return nil
}
