package pose

// Secondary (reduced) topology keypoint indices, 17-point convention.
const (
	SecNose          = 0
	SecLeftEye       = 1
	SecRightEye      = 2
	SecLeftEar       = 3
	SecRightEar      = 4
	SecLeftShoulder  = 5
	SecRightShoulder = 6
	SecLeftElbow     = 7
	SecRightElbow    = 8
	SecLeftWrist     = 9
	SecRightWrist    = 10
	SecLeftHip       = 11
	SecRightHip      = 12
	SecLeftKnee      = 13
	SecRightKnee     = 14
	SecLeftAnkle     = 15
	SecRightAnkle    = 16

	// NumSecondaryKeypoints is the size of the reduced index space.
	NumSecondaryKeypoints = 17
)

// secondaryToCanonical maps each reduced-topology keypoint to its canonical
// landmark index. The mapping is static: the reduced topology is a strict
// subset of the canonical one. Canonical landmarks with no entry here (face
// detail, hands, feet) are only ever placed by the primary model.
var secondaryToCanonical = [NumSecondaryKeypoints]int{
	SecNose:          Nose,
	SecLeftEye:       LeftEye,
	SecRightEye:      RightEye,
	SecLeftEar:       LeftEar,
	SecRightEar:      RightEar,
	SecLeftShoulder:  LeftShoulder,
	SecRightShoulder: RightShoulder,
	SecLeftElbow:     LeftElbow,
	SecRightElbow:    RightElbow,
	SecLeftWrist:     LeftWrist,
	SecRightWrist:    RightWrist,
	SecLeftHip:       LeftHip,
	SecRightHip:      RightHip,
	SecLeftKnee:      LeftKnee,
	SecRightKnee:     RightKnee,
	SecLeftAnkle:     LeftAnkle,
	SecRightAnkle:    RightAnkle,
}

// SecondaryToCanonical translates a reduced-topology keypoint index into the
// canonical landmark index. Panics on out-of-range input: callers validate
// result lengths at the boundary before translating.
func SecondaryToCanonical(i int) int {
	return secondaryToCanonical[i]
}
