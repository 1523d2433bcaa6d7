// Package motion converts the fused-pose stream into joint angles and a
// multi-dimensional movement-quality score with human-readable feedback.
package motion

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kinetic-data/motion.report/internal/pose"
)

// Joint names a skeletal vertex whose angle is tracked.
type Joint string

const (
	JointLeftElbow     Joint = "leftElbow"
	JointRightElbow    Joint = "rightElbow"
	JointLeftShoulder  Joint = "leftShoulder"
	JointRightShoulder Joint = "rightShoulder"
	JointLeftHip       Joint = "leftHip"
	JointRightHip      Joint = "rightHip"
	JointLeftKnee      Joint = "leftKnee"
	JointRightKnee     Joint = "rightKnee"
	JointSpine         Joint = "spine"
)

// JointAngleSet holds the named joint angles computed for one frame, each in
// degrees in [0,180]. Joints whose landmarks were unusable are absent.
type JointAngleSet map[Joint]float64

// symmetryPairs is the full left/right pair table, left side first. The
// analyzer narrows it to the pairs touching an exercise's primary joints.
var symmetryPairs = [][2]Joint{
	{JointLeftElbow, JointRightElbow},
	{JointLeftShoulder, JointRightShoulder},
	{JointLeftHip, JointRightHip},
	{JointLeftKnee, JointRightKnee},
}

// jointTriple defines a joint angle as (proximal, vertex, distal) canonical
// landmark indices.
type jointTriple struct {
	p1, vertex, p3 int
}

var jointTriples = map[Joint]jointTriple{
	JointLeftElbow:     {pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist},
	JointRightElbow:    {pose.RightShoulder, pose.RightElbow, pose.RightWrist},
	JointLeftShoulder:  {pose.LeftElbow, pose.LeftShoulder, pose.LeftHip},
	JointRightShoulder: {pose.RightElbow, pose.RightShoulder, pose.RightHip},
	JointLeftHip:       {pose.LeftShoulder, pose.LeftHip, pose.LeftKnee},
	JointRightHip:      {pose.RightShoulder, pose.RightHip, pose.RightKnee},
	JointLeftKnee:      {pose.LeftHip, pose.LeftKnee, pose.LeftAnkle},
	JointRightKnee:     {pose.RightHip, pose.RightKnee, pose.RightAnkle},
}

// epsilonMagnitude is the vector magnitude below which angle computation is
// considered degenerate.
const epsilonMagnitude = 1e-9

// AngleAt returns the angle in degrees at vertex v formed by the segments to
// p1 and p3, using full 3D vectors. The second return is false when either
// segment has near-zero magnitude; the angle is then 0 rather than a division
// by zero.
func AngleAt(p1, v, p3 r3.Vec) (float64, bool) {
	v1 := r3.Sub(p1, v)
	v2 := r3.Sub(p3, v)
	m1 := r3.Norm(v1)
	m2 := r3.Norm(v2)
	if m1 < epsilonMagnitude || m2 < epsilonMagnitude {
		return 0, false
	}
	cos := r3.Dot(v1, v2) / (m1 * m2)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos) * 180 / math.Pi, true
}

// midpoint returns the midpoint of two landmark positions.
func midpoint(a, b r3.Vec) r3.Vec {
	return r3.Scale(0.5, r3.Add(a, b))
}

// computeJointAngles derives the joint angle set for one fused pose. Joints
// whose constituent landmarks are unknown are left absent. Degenerate
// geometry yields a zero angle and is reported through the callback.
func computeJointAngles(landmarks []pose.Landmark, onDegenerate func()) JointAngleSet {
	angles := make(JointAngleSet, len(jointTriples)+1)

	known := func(idx int) bool {
		return idx < len(landmarks) && landmarks[idx].Known()
	}

	for joint, t := range jointTriples {
		if !known(t.p1) || !known(t.vertex) || !known(t.p3) {
			continue
		}
		angle, ok := AngleAt(landmarks[t.p1].Position, landmarks[t.vertex].Position, landmarks[t.p3].Position)
		if !ok && onDegenerate != nil {
			onDegenerate()
		}
		angles[joint] = angle
	}

	// Spine angle: mid-shoulder over mid-hip toward mid-knee.
	if known(pose.LeftShoulder) && known(pose.RightShoulder) &&
		known(pose.LeftHip) && known(pose.RightHip) &&
		known(pose.LeftKnee) && known(pose.RightKnee) {
		midShoulder := midpoint(landmarks[pose.LeftShoulder].Position, landmarks[pose.RightShoulder].Position)
		midHip := midpoint(landmarks[pose.LeftHip].Position, landmarks[pose.RightHip].Position)
		midKnee := midpoint(landmarks[pose.LeftKnee].Position, landmarks[pose.RightKnee].Position)
		angle, ok := AngleAt(midShoulder, midHip, midKnee)
		if !ok && onDegenerate != nil {
			onDegenerate()
		}
		angles[JointSpine] = angle
	}

	return angles
}
