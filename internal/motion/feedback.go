package motion

import "sort"

// Feedback thresholds. A sub-score below its threshold produces a correction
// cue; a high overall score produces reinforcement.
const (
	feedbackSymmetryThreshold  = 60.0
	feedbackROMThreshold       = 60.0
	feedbackTempoThreshold     = 60.0
	feedbackStabilityThreshold = 60.0
	feedbackPraiseThreshold    = 85.0
)

// cue pairs a triggering sub-score with its guidance string so cues can be
// ordered most-severe first.
type cue struct {
	score   float64
	message string
}

// Feedback converts a form score into an ordered list of guidance strings.
// It is pure and stateless: the same score always produces the same list,
// ordered by ascending sub-score (worst problem first), with reinforcement
// last.
func Feedback(score FormScore) []string {
	cues := make([]cue, 0, 4)

	if score.Symmetry < feedbackSymmetryThreshold {
		msg := "Keep both sides moving together evenly."
		switch score.Breakdown.DominantSide {
		case "left":
			msg = "Your left side is working harder; ease it back to match your right."
		case "right":
			msg = "Your right side is working harder; ease it back to match your left."
		}
		cues = append(cues, cue{score.Symmetry, msg})
	}

	if score.RangeOfMotion < feedbackROMThreshold {
		cues = append(cues, cue{score.RangeOfMotion, "Deepen the movement to reach the full range of motion."})
	}

	if score.Tempo < feedbackTempoThreshold {
		cues = append(cues, cue{score.Tempo, "Keep a steady, even pace through each repetition."})
	}

	if score.Stability < feedbackStabilityThreshold {
		cues = append(cues, cue{score.Stability, "Engage your core and minimise extra movement."})
	}

	sort.SliceStable(cues, func(i, j int) bool { return cues[i].score < cues[j].score })

	messages := make([]string, 0, len(cues)+1)
	for _, c := range cues {
		messages = append(messages, c.message)
	}

	if score.Overall >= feedbackPraiseThreshold {
		messages = append(messages, "Great form, keep it up.")
	}

	return messages
}
