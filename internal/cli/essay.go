package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"contest-grading-service/internal/essay"
	"github.com/spf13/cobra"
)

// NewScoreEssayCmd scores one essay offline, for tuning and appeals.
func NewScoreEssayCmd() *cobra.Command {
	var (
		file        string
		maxPoints   int
		competitors []string
	)
	cmd := &cobra.Command{
		Use:   "score-essay",
		Short: "Score an essay file and print its analysis as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxPoints < 0 {
				return fmt.Errorf("--max-points must not be negative")
			}
			text, err := readText(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			others := make([]string, 0, len(competitors))
			for _, path := range competitors {
				other, err := readText(nil, path)
				if err != nil {
					return err
				}
				others = append(others, other)
			}

			analysis := essay.Score(text, maxPoints, others)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(analysis)
		},
	}
	cmd.Flags().StringVar(&file, "file", "-", "essay file, or - for stdin")
	cmd.Flags().IntVar(&maxPoints, "max-points", 100, "points the essay question is worth")
	cmd.Flags().StringArrayVar(&competitors, "competitor", nil, "file holding another answer to compare against (repeatable)")
	return cmd
}

func readText(stdin io.Reader, path string) (string, error) {
	if path == "-" && stdin != nil {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
