package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/replay"
)

// errDrift is returned when replayed cycles disagree with the fixture.
type errDrift int

func (e errDrift) Error() string {
	return fmt.Sprintf("%d cycle(s) diverge from fixture", int(e))
}

func newReplayCmd() *cobra.Command {
	var fixture string
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a recorded fixture through validation and fusion",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := replay.LoadFixture(fixture)
			if err != nil {
				return err
			}
			results := replay.Replay(f.ToCycles(), f.Config.ToReplayConfig())
			if n := replay.WriteComparison(cmd.OutOrStdout(), results, f.ExpectedResults); n > 0 {
				return errDrift(n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fixture, "fixture", "", "Fixture JSON path (required)")
	_ = cmd.MarkFlagRequired("fixture")
	return cmd
}
