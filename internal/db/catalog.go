package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kinetic-data/motion.report/internal/motion"
)

// CriteriaFor looks up the exercise criteria for an exercise id. Unknown ids
// return the permissive default (no joints, no targets) with found=false
// rather than an error.
func (db *DB) CriteriaFor(exerciseID string) (motion.ExerciseCriteria, bool) {
	row := db.QueryRow(`
		SELECT name, primary_joints, target_angles, symmetry_required, tempo,
		       stability_core, stability_peripheral
		FROM exercises WHERE exercise_id = ?`, exerciseID)

	var (
		name, jointsJSON, targetsJSON, coreJSON, peripheralJSON string
		symmetryRequired                                        bool
		tempo                                                   string
	)
	err := row.Scan(&name, &jointsJSON, &targetsJSON, &symmetryRequired, &tempo, &coreJSON, &peripheralJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return motion.PermissiveCriteria(exerciseID), false
	}
	if err != nil {
		// A malformed row is as unrecoverable as a miss; degrade the same way.
		return motion.PermissiveCriteria(exerciseID), false
	}

	criteria := motion.ExerciseCriteria{
		ExerciseID:       exerciseID,
		Name:             name,
		SymmetryRequired: symmetryRequired,
		Tempo:            tempo,
	}
	if err := json.Unmarshal([]byte(jointsJSON), &criteria.PrimaryJoints); err != nil {
		return motion.PermissiveCriteria(exerciseID), false
	}
	if err := json.Unmarshal([]byte(targetsJSON), &criteria.TargetAngles); err != nil {
		return motion.PermissiveCriteria(exerciseID), false
	}
	if err := json.Unmarshal([]byte(coreJSON), &criteria.StabilityCore); err != nil {
		return motion.PermissiveCriteria(exerciseID), false
	}
	if err := json.Unmarshal([]byte(peripheralJSON), &criteria.StabilityPeripheral); err != nil {
		return motion.PermissiveCriteria(exerciseID), false
	}
	return criteria, true
}

// UpsertCriteria inserts or replaces an exercise's criteria.
func (db *DB) UpsertCriteria(c motion.ExerciseCriteria) error {
	joints, err := json.Marshal(c.PrimaryJoints)
	if err != nil {
		return fmt.Errorf("failed to encode primary joints: %w", err)
	}
	targets, err := json.Marshal(c.TargetAngles)
	if err != nil {
		return fmt.Errorf("failed to encode target angles: %w", err)
	}
	core, err := json.Marshal(c.StabilityCore)
	if err != nil {
		return fmt.Errorf("failed to encode stability core: %w", err)
	}
	peripheral, err := json.Marshal(c.StabilityPeripheral)
	if err != nil {
		return fmt.Errorf("failed to encode stability peripheral: %w", err)
	}

	_, err = db.Exec(`
		INSERT OR REPLACE INTO exercises
			(exercise_id, name, primary_joints, target_angles, symmetry_required, tempo,
			 stability_core, stability_peripheral)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ExerciseID, c.Name, string(joints), string(targets), c.SymmetryRequired, c.Tempo,
		string(core), string(peripheral))
	if err != nil {
		return fmt.Errorf("failed to upsert exercise %q: %w", c.ExerciseID, err)
	}
	return nil
}

// SeedCatalog inserts the built-in exercise criteria, replacing existing rows
// with the same ids.
func (db *DB) SeedCatalog() error {
	for _, c := range seedCriteria {
		if err := db.UpsertCriteria(c); err != nil {
			return err
		}
	}
	return nil
}

// seedCriteria are the exercises shipped with the binary. Target angles are
// the angle at the bottom of the movement, in degrees.
var seedCriteria = []motion.ExerciseCriteria{
	{
		ExerciseID:    "squat-bilateral",
		Name:          "Bilateral squat",
		PrimaryJoints: []motion.Joint{motion.JointLeftKnee, motion.JointRightKnee},
		TargetAngles: map[motion.Joint]float64{
			motion.JointLeftKnee:  90,
			motion.JointRightKnee: 90,
		},
		SymmetryRequired: true,
		Tempo:            "normal",
	},
	{
		ExerciseID:    "lunge-forward",
		Name:          "Forward lunge",
		PrimaryJoints: []motion.Joint{motion.JointLeftKnee, motion.JointRightKnee, motion.JointLeftHip},
		TargetAngles: map[motion.Joint]float64{
			motion.JointLeftKnee:  90,
			motion.JointRightKnee: 90,
			motion.JointLeftHip:   100,
		},
		SymmetryRequired: false,
		Tempo:            "slow",
	},
	{
		ExerciseID:    "arm-raise-lateral",
		Name:          "Lateral arm raise",
		PrimaryJoints: []motion.Joint{motion.JointLeftShoulder, motion.JointRightShoulder},
		TargetAngles: map[motion.Joint]float64{
			motion.JointLeftShoulder:  90,
			motion.JointRightShoulder: 90,
		},
		SymmetryRequired: true,
		Tempo:            "slow",
	},
	{
		ExerciseID:    "jumping-jack",
		Name:          "Jumping jack",
		PrimaryJoints: []motion.Joint{motion.JointLeftShoulder, motion.JointRightShoulder, motion.JointLeftHip, motion.JointRightHip},
		TargetAngles: map[motion.Joint]float64{
			motion.JointLeftShoulder:  160,
			motion.JointRightShoulder: 160,
			motion.JointLeftHip:       150,
			motion.JointRightHip:      150,
		},
		SymmetryRequired: true,
		Tempo:            "fast",
	},
}

// MemoryCatalog is an in-memory criteria lookup for tests and replay runs
// that don't want a database file.
type MemoryCatalog struct {
	criteria map[string]motion.ExerciseCriteria
}

// NewMemoryCatalog creates a MemoryCatalog preloaded with the given criteria.
func NewMemoryCatalog(criteria ...motion.ExerciseCriteria) *MemoryCatalog {
	m := &MemoryCatalog{criteria: make(map[string]motion.ExerciseCriteria, len(criteria))}
	for _, c := range criteria {
		m.criteria[c.ExerciseID] = c
	}
	return m
}

// NewSeededMemoryCatalog creates a MemoryCatalog with the built-in exercises.
func NewSeededMemoryCatalog() *MemoryCatalog {
	return NewMemoryCatalog(seedCriteria...)
}

// CriteriaFor returns the criteria for an exercise id, or the permissive
// default with found=false for unknown ids.
func (m *MemoryCatalog) CriteriaFor(exerciseID string) (motion.ExerciseCriteria, bool) {
	c, ok := m.criteria[exerciseID]
	if !ok {
		return motion.PermissiveCriteria(exerciseID), false
	}
	return c, true
}
