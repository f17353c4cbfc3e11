package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "rigpilot",
		Short:         "Rig Pilot: watch and auto-pilot your mining rigs",
		Long:          "rigpilot keeps a projected view of your rigs between server polls, runs an automation agent that repairs, collects, recharges and claims on your behalf, and lets you act on rigs from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(app),
		newStatusCmd(app),
		newActCmd(app),
		newSimulateCmd(app),
	)

	return rootCmd
}
