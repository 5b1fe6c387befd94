package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"steadymic/internal/usecase"
)

// ClassifyCmd prints how the engine treats raw recognition error codes.
func ClassifyCmd(env *Env) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "classify [code...]",
		Short: "Show how recognition error codes are handled",
		Example: `  steadymic classify no-speech network
  steadymic classify --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				args = append(usecase.KnownCodes(), args...)
			}
			if len(args) == 0 {
				return fmt.Errorf("requires at least 1 code, or --all")
			}
			return printClassifications(env, args)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include every known code")
	return cmd
}

func printClassifications(env *Env, codes []string) error {
	classifier := usecase.StandardClassifier{}
	w := tabwriter.NewWriter(env.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tKIND\tACTION\tMESSAGE")
	for _, code := range codes {
		c := classifier.Classify(code)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", code, c.Kind, c.Action, c.Message)
	}
	return w.Flush()
}
