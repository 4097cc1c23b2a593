package commands

import (
	"github.com/spf13/cobra"

	"github.com/victortavares4/dsl-investments/pkg/codegen"
)

func newCodegenCommand(g *Globals) *cobra.Command {
	var (
		opts   codegen.Options
		output string
	)

	cmd := &cobra.Command{
		Use:   "codegen <file>",
		Short: "Emit a Go source file for a valid document",
		Long: `Codegen writes a gofmt-ed Go file declaring typed portfolio structs and a
variable holding the document. Package and type names default to the
codegen section of the configuration.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cliSession(g)
			if err != nil {
				return err
			}
			defer closeSession(sess)

			if opts.Package == "" {
				opts.Package = sess.cfg.Codegen.Package
			}

			if opts.TypeName == "" {
				opts.TypeName = sess.cfg.Codegen.TypeName
			}

			if args[0] != stdinPath {
				opts.Source = args[0]
			}

			out, err := compileForGeneration(cmd, g, sess, args[0])
			if err != nil {
				return err
			}

			src, err := codegen.Source(out.Result, opts)
			if err != nil {
				return err
			}

			return emit(cmd, g, output, src)
		},
	}

	cmd.Flags().StringVar(&opts.Package, "package", "", "Go package name")
	cmd.Flags().StringVar(&opts.TypeName, "type", "", "exported portfolio type name")
	cmd.Flags().StringVar(&opts.VarName, "var", "", "exported variable name (default "+codegen.DefaultVarName+")")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	return cmd
}
