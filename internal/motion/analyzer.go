package motion

import (
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/kinetic-data/motion.report/internal/monitoring"
	"github.com/kinetic-data/motion.report/internal/pose"
)

// ExerciseCriteria is the declarative description of which joints matter for
// an exercise and what good form means.
type ExerciseCriteria struct {
	ExerciseID       string            `json:"exercise_id"`
	Name             string            `json:"name"`
	PrimaryJoints    []Joint           `json:"primary_joints"`
	TargetAngles     map[Joint]float64 `json:"target_angles"` // degrees
	SymmetryRequired bool              `json:"symmetry_required"`
	Tempo            string            `json:"tempo"` // "slow", "normal", "fast"

	// Stability-zone landmark groups, canonical indices. Empty groups use
	// the package defaults (torso core, wrist/ankle periphery).
	StabilityCore       []int `json:"stability_core,omitempty"`
	StabilityPeripheral []int `json:"stability_peripheral,omitempty"`
}

// PermissiveCriteria returns the criteria used for unknown exercise ids:
// no joints, no targets, nothing to fail.
func PermissiveCriteria(exerciseID string) ExerciseCriteria {
	return ExerciseCriteria{ExerciseID: exerciseID, Tempo: "normal"}
}

var (
	defaultStabilityCore       = []int{pose.LeftShoulder, pose.RightShoulder, pose.LeftHip, pose.RightHip}
	defaultStabilityPeripheral = []int{pose.LeftWrist, pose.RightWrist, pose.LeftAnkle, pose.RightAnkle}
)

// ScoreWeights is the weight profile applied to the four sub-scores. Each
// profile sums to 1.0.
type ScoreWeights struct {
	Symmetry      float64
	RangeOfMotion float64
	Tempo         float64
	Stability     float64
}

var (
	// symmetryFocusWeights applies when the exercise marks symmetry required.
	symmetryFocusWeights = ScoreWeights{Symmetry: 0.35, RangeOfMotion: 0.25, Tempo: 0.20, Stability: 0.20}

	// romFocusWeights applies otherwise.
	romFocusWeights = ScoreWeights{Symmetry: 0.20, RangeOfMotion: 0.40, Tempo: 0.20, Stability: 0.20}
)

// FormScore is the structured movement-quality result for one scoring tick.
// The overall score and every sub-score are in [0,100].
type FormScore struct {
	Overall       float64        `json:"overall"`
	Symmetry      float64        `json:"symmetry"`
	RangeOfMotion float64        `json:"range_of_motion"`
	Tempo         float64        `json:"tempo"`
	Stability     float64        `json:"stability"`
	Breakdown     ScoreBreakdown `json:"breakdown"`
}

// ScoreBreakdown carries the intermediate measurements behind the sub-scores.
type ScoreBreakdown struct {
	Angles JointAngleSet `json:"angles"`

	PairDifferences      map[string]float64 `json:"pair_differences,omitempty"` // degrees per left/right pair
	AvgPairDifferenceDeg float64            `json:"avg_pair_difference_deg"`
	DominantSide         string             `json:"dominant_side"` // "left", "right", or "balanced"

	AchievedROMDeg float64 `json:"achieved_rom_deg"`
	TargetROMDeg   float64 `json:"target_rom_deg"`

	VelocityMeanDegPerSec float64 `json:"velocity_mean_deg_per_sec"`
	VelocityStdDev        float64 `json:"velocity_std_dev"`
	VelocityCV            float64 `json:"velocity_cv"` // coefficient of variation

	CoreDisplacement       float64 `json:"core_displacement"`
	PeripheralDisplacement float64 `json:"peripheral_displacement"`
	CoreStability          float64 `json:"core_stability"`
	JointStability         float64 `json:"joint_stability"`
	Tremor                 float64 `json:"tremor"` // min(core, joint) stability

	SampleCount int `json:"sample_count"`
}

// AnalyzerConfig holds the analyzer's tunable ceilings. The ceilings are not
// derived from validated biomechanical data; calibrate against ground-truth
// motion capture before clinical use.
type AnalyzerConfig struct {
	// HistorySize is the snapshot ring buffer capacity.
	HistorySize int

	// SymmetryCeilingDeg maps to a symmetry score of 0; 0deg maps to 100.
	SymmetryCeilingDeg float64

	// SymmetryMaterialityDeg is the average pair difference above which a
	// dominant side is reported instead of "balanced".
	SymmetryMaterialityDeg float64

	// TempoCVCeiling is the velocity coefficient-of-variation mapping to a
	// tempo score of 0.
	TempoCVCeiling float64

	// CoreDisplacementCeiling and PeripheralDisplacementCeiling are the
	// frame-to-frame displacements (normalized frame units) mapping to a
	// stability score of 0.
	CoreDisplacementCeiling       float64
	PeripheralDisplacementCeiling float64
}

// DefaultAnalyzerConfig returns the default analyzer tuning.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		HistorySize:                   60,
		SymmetryCeilingDeg:            30,
		SymmetryMaterialityDeg:        10,
		TempoCVCeiling:                1.0,
		CoreDisplacementCeiling:       0.05,
		PeripheralDisplacementCeiling: 0.10,
	}
}

// Analyzer converts the fused-pose stream into joint angles, maintains
// bounded history, and computes form scores. Construct one per session; the
// analyzer is not safe for concurrent use.
type Analyzer struct {
	config     AnalyzerConfig
	criteria   ExerciseCriteria
	history    *History
	recoveries *monitoring.Recoveries
}

// NewAnalyzer creates an analyzer for the given criteria. recoveries may be
// nil when degraded-accuracy counting is not wanted.
func NewAnalyzer(config AnalyzerConfig, criteria ExerciseCriteria, recoveries *monitoring.Recoveries) *Analyzer {
	return &Analyzer{
		config:     config,
		criteria:   criteria,
		history:    NewHistory(config.HistorySize),
		recoveries: recoveries,
	}
}

// SetCriteria switches the analyzer to a new exercise's criteria. The caller
// decides when to clear history; switching criteria does not do it
// implicitly.
func (a *Analyzer) SetCriteria(c ExerciseCriteria) {
	a.criteria = c
}

// Criteria returns the active exercise criteria.
func (a *Analyzer) Criteria() ExerciseCriteria {
	return a.criteria
}

// ResetHistory clears the snapshot ring buffer between exercises.
func (a *Analyzer) ResetHistory() {
	a.history.Clear()
}

// HistorySize returns the number of retained snapshots.
func (a *Analyzer) HistorySize() int {
	return a.history.Size()
}

// Observe ingests one fused pose, appends it to history, and returns the
// form score for the current window.
func (a *Analyzer) Observe(p *pose.FusedPose) *FormScore {
	onDegenerate := func() {
		if a.recoveries != nil {
			a.recoveries.IncDegenerateGeometry()
		}
	}
	angles := computeJointAngles(p.Landmarks, onDegenerate)
	a.history.Add(&Snapshot{Timestamp: p.Timestamp, Landmarks: p.Landmarks, Angles: angles})

	score := &FormScore{
		Breakdown: ScoreBreakdown{
			Angles:       angles,
			DominantSide: "balanced",
			SampleCount:  a.history.Size(),
		},
	}

	a.scoreSymmetry(angles, score)
	a.scoreRangeOfMotion(angles, score)
	a.scoreTempo(score)
	a.scoreStability(score)

	weights := romFocusWeights
	if a.criteria.SymmetryRequired {
		weights = symmetryFocusWeights
	}
	score.Overall = clampScore(
		weights.Symmetry*score.Symmetry +
			weights.RangeOfMotion*score.RangeOfMotion +
			weights.Tempo*score.Tempo +
			weights.Stability*score.Stability)

	return score
}

// symmetryPairsFor returns the left/right pairs the symmetry score compares:
// pairs touching one of the exercise's primary joints, or the full table when
// the criteria configure no joints.
func (a *Analyzer) symmetryPairsFor() [][2]Joint {
	if len(a.criteria.PrimaryJoints) == 0 {
		return symmetryPairs
	}
	primary := make(map[Joint]bool, len(a.criteria.PrimaryJoints))
	for _, j := range a.criteria.PrimaryJoints {
		primary[j] = true
	}
	pairs := make([][2]Joint, 0, len(symmetryPairs))
	for _, pair := range symmetryPairs {
		if primary[pair[0]] || primary[pair[1]] {
			pairs = append(pairs, pair)
		}
	}
	return pairs
}

// scoreSymmetry compares the configured left/right joint pairs present in the
// current frame. Equal pairs score 100; the configured ceiling maps to 0.
func (a *Analyzer) scoreSymmetry(angles JointAngleSet, score *FormScore) {
	var diffSum, leftSum, rightSum float64
	diffs := make(map[string]float64)
	pairs := 0

	for _, pair := range a.symmetryPairsFor() {
		left, lok := angles[pair[0]]
		right, rok := angles[pair[1]]
		if !lok || !rok {
			continue
		}
		d := left - right
		if d < 0 {
			d = -d
		}
		diffs[string(pair[0])+"/"+string(pair[1])] = d
		diffSum += d
		leftSum += left
		rightSum += right
		pairs++
	}

	if pairs == 0 {
		score.Symmetry = 100
		return
	}

	avgDiff := diffSum / float64(pairs)
	score.Symmetry = linearScore(avgDiff, a.config.SymmetryCeilingDeg)
	score.Breakdown.PairDifferences = diffs
	score.Breakdown.AvgPairDifferenceDeg = avgDiff

	if avgDiff > a.config.SymmetryMaterialityDeg {
		if leftSum > rightSum {
			score.Breakdown.DominantSide = "left"
		} else {
			score.Breakdown.DominantSide = "right"
		}
	}
}

// scoreRangeOfMotion compares the average achieved angle across the
// exercise's primary joints against the mean configured target.
func (a *Analyzer) scoreRangeOfMotion(angles JointAngleSet, score *FormScore) {
	var achievedSum, targetSum float64
	n := 0
	for _, joint := range a.criteria.PrimaryJoints {
		target, hasTarget := a.criteria.TargetAngles[joint]
		achieved, ok := angles[joint]
		if !hasTarget || !ok {
			continue
		}
		achievedSum += achieved
		targetSum += target
		n++
	}

	// Nothing configured or nothing measurable: nothing to judge.
	if n == 0 || targetSum <= 0 {
		score.RangeOfMotion = 100
		return
	}

	achieved := achievedSum / float64(n)
	target := targetSum / float64(n)
	score.Breakdown.AchievedROMDeg = achieved
	score.Breakdown.TargetROMDeg = target

	s := achieved / target * 100
	if s > 100 {
		s = 100
	}
	score.RangeOfMotion = clampScore(s)
}

// scoreTempo estimates per-frame angular velocity over the history window and
// penalizes a high coefficient of variation.
func (a *Analyzer) scoreTempo(score *FormScore) {
	snapshots := a.history.All()
	velocities := make([]float64, 0, len(snapshots))

	for i := 1; i < len(snapshots); i++ {
		prev, cur := snapshots[i-1], snapshots[i]
		dt := cur.Timestamp.Sub(prev.Timestamp).Seconds()
		if dt <= 0 {
			continue
		}
		var deltaSum float64
		joints := 0
		for joint, angle := range cur.Angles {
			prevAngle, ok := prev.Angles[joint]
			if !ok {
				continue
			}
			d := angle - prevAngle
			if d < 0 {
				d = -d
			}
			deltaSum += d
			joints++
		}
		if joints == 0 {
			continue
		}
		velocities = append(velocities, deltaSum/float64(joints)/dt)
	}

	if len(velocities) < 2 {
		score.Tempo = 100
		return
	}

	mean, std := stat.MeanStdDev(velocities, nil)
	score.Breakdown.VelocityMeanDegPerSec = mean
	score.Breakdown.VelocityStdDev = std

	// Near-zero mean velocity is a hold, not inconsistency.
	if mean < 1e-6 {
		score.Tempo = 100
		return
	}

	cv := std / mean
	score.Breakdown.VelocityCV = cv
	score.Tempo = linearScore(cv, a.config.TempoCVCeiling)
}

// scoreStability measures frame-to-frame displacement of the core and
// peripheral landmark groups between the two most recent snapshots.
func (a *Analyzer) scoreStability(score *FormScore) {
	cur := a.history.Previous(1)
	prev := a.history.Previous(2)
	if cur == nil || prev == nil {
		score.Stability = 100
		score.Breakdown.CoreStability = 100
		score.Breakdown.JointStability = 100
		score.Breakdown.Tremor = 100
		return
	}

	core := a.criteria.StabilityCore
	if len(core) == 0 {
		core = defaultStabilityCore
	}
	peripheral := a.criteria.StabilityPeripheral
	if len(peripheral) == 0 {
		peripheral = defaultStabilityPeripheral
	}

	coreDisp := meanDisplacement(prev.Landmarks, cur.Landmarks, core)
	periphDisp := meanDisplacement(prev.Landmarks, cur.Landmarks, peripheral)

	coreStability := linearScore(coreDisp, a.config.CoreDisplacementCeiling)
	jointStability := linearScore(periphDisp, a.config.PeripheralDisplacementCeiling)

	score.Breakdown.CoreDisplacement = coreDisp
	score.Breakdown.PeripheralDisplacement = periphDisp
	score.Breakdown.CoreStability = coreStability
	score.Breakdown.JointStability = jointStability
	score.Breakdown.Tremor = coreStability
	if jointStability < coreStability {
		score.Breakdown.Tremor = jointStability
	}

	score.Stability = clampScore((coreStability + jointStability) / 2)
}

// meanDisplacement averages the 3D displacement of the given landmark subset
// between two frames, skipping landmarks unknown in either frame.
func meanDisplacement(prev, cur []pose.Landmark, indices []int) float64 {
	var sum float64
	n := 0
	for _, idx := range indices {
		if idx >= len(prev) || idx >= len(cur) {
			continue
		}
		if !prev[idx].Known() || !cur[idx].Known() {
			continue
		}
		sum += r3.Norm(r3.Sub(cur[idx].Position, prev[idx].Position))
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// linearScore maps value linearly to [0,100]: zero scores 100, ceiling and
// above score 0.
func linearScore(value, ceiling float64) float64 {
	if ceiling <= 0 {
		return 100
	}
	return clampScore(100 * (1 - value/ceiling))
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
