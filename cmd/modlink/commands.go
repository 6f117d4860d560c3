package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/modlink-io/modlink"
	"github.com/modlink-io/modlink/codeobj"
)

// newRuntime builds a Runtime from the environment, config file, and flags.
func newRuntime() (*modlink.Runtime, error) {
	return modlink.New(
		modlink.WithLibRoots(viper.GetStringSlice("libs")...),
		modlink.WithPathDirs(viper.GetStringSlice("path")...),
		modlink.WithLogger(newLogger()),
	)
}

func newPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the effective search path in resolution order",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			for _, dir := range rt.Path().Dirs() {
				fmt.Println(dir)
			}
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every module resolvable on the search path",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			for _, m := range rt.AllAvailable() {
				fmt.Printf("%s\t%s\n", bold(m.Name), m.Origin)
			}
			return nil
		},
	}
}

func newWhichCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "which <module>",
		Short: "Print the object file a module resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			where, err := rt.Which(args[0])
			if err != nil {
				return err
			}
			fmt.Println(where)
			return nil
		},
	}
}

func newClashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clash",
		Short: "Report modules shadowed by earlier search path entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			clashes := rt.Clashes()
			if len(clashes) == 0 {
				fmt.Println("no clashes")
				return nil
			}
			for _, c := range clashes {
				fmt.Printf("%s: %s wins\n", bold(c.Module), c.Winner)
				for _, dir := range c.Shadowed {
					fmt.Printf("  shadowed: %s\n", dir)
				}
			}
			os.Exit(1)
			return nil
		},
	}
}

func newPackCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "pack <module> <payload-file>",
		Short: "Wrap a compiled payload into a module object container",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			module, payloadFile := args[0], args[1]
			payload, err := os.ReadFile(payloadFile)
			if err != nil {
				return err
			}
			obj, err := codeobj.New(codeobj.Params{
				Name:   module,
				Binary: payload,
				Origin: payloadFile,
			})
			if err != nil {
				return err
			}
			out := output
			if out == "" {
				out = module + codeobj.Ext
			}
			if err := codeobj.WriteFile(obj, out); err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d bytes payload)\n", out, obj.Size())
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <module>.mox)")
	return cmd
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file.mox>",
		Short: "Show the module tag, size, and checksum of an object container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			obj, err := codeobj.ReadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("module:   %s\n", bold(obj.Name()))
			fmt.Printf("payload:  %d bytes\n", obj.Size())
			fmt.Printf("checksum: %#x\n", obj.Checksum())
			return nil
		},
	}
}
