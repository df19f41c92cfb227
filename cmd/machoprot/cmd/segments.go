package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	macho "github.com/appsworld/machoprot"
	"github.com/appsworld/machoprot/types"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	colorSlice = color.New(color.Bold).SprintFunc()
	colorName  = color.New(color.FgHiBlue).SprintFunc()
	colorRead  = color.New(color.FgGreen).SprintFunc()
	colorWrite = color.New(color.FgYellow).SprintFunc()
	colorExec  = color.New(color.FgRed).SprintFunc()
)

func init() {
	rootCmd.AddCommand(segmentsCmd)
	segmentsCmd.MarkZshCompPositionalArgumentFile(1)
}

func colorProt(p types.VmProtection) string {
	var sb strings.Builder
	for _, c := range p.String() {
		switch c {
		case 'r':
			sb.WriteString(colorRead("r"))
		case 'w':
			sb.WriteString(colorWrite("w"))
		case 'x':
			sb.WriteString(colorExec("x"))
		default:
			sb.WriteRune(c)
		}
	}
	return sb.String()
}

// segmentsCmd represents the segments command
var segmentsCmd = &cobra.Command{
	Use:           "segments <MACHO>",
	Aliases:       []string{"segs"},
	Short:         "List the segments of a MachO with their initprot/maxprot",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		setup()

		machoPath := filepath.Clean(args[0])

		slices, err := macho.ReadSegments(machoPath)
		if err != nil {
			return errors.Wrapf(err, "failed to read segments of %s", machoPath)
		}

		out := cmd.OutOrStdout()
		for _, s := range slices {
			if s.Fat || len(slices) > 1 {
				fmt.Fprintf(out, "%s\n", colorSlice(s.String()))
			}
			for _, seg := range s.Segments {
				fmt.Fprintf(out, "    %s%s %s/%s   %s\n", colorName(seg.Name), strings.Repeat(" ", 18-len(seg.Name)), colorProt(seg.Prot), colorProt(seg.Maxprot), seg.Flag)
			}
		}
		return nil
	},
}
