package pose

// NumLandmarks is the size of a full MediaPipe Pose landmark set.
const NumLandmarks = 33

// Landmark indices (MediaPipe Pose contract).
const (
	Nose           = 0
	LeftEyeInner   = 1
	LeftEye        = 2
	LeftEyeOuter   = 3
	RightEyeInner  = 4
	RightEye       = 5
	RightEyeOuter  = 6
	LeftEar        = 7
	RightEar       = 8
	MouthLeft      = 9
	MouthRight     = 10
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftIndex      = 19
	RightIndex     = 20
	LeftThumb      = 21
	RightThumb     = 22
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32
)

// Connection is a pair of landmark indices drawn as one skeleton segment.
type Connection struct {
	A, B int
}

// Connections is the fixed skeleton topology: which landmark pairs are
// connected by a drawn line. Shared by every trail layer, never mutated at
// runtime. Matches MediaPipe's POSE_CONNECTIONS.
var Connections = []Connection{
	// Face
	{Nose, LeftEyeInner}, {LeftEyeInner, LeftEye}, {LeftEye, LeftEyeOuter},
	{LeftEyeOuter, LeftEar}, {Nose, RightEyeInner}, {RightEyeInner, RightEye},
	{RightEye, RightEyeOuter}, {RightEyeOuter, RightEar}, {MouthLeft, MouthRight},
	// Torso
	{LeftShoulder, RightShoulder}, {LeftShoulder, LeftHip},
	{RightShoulder, RightHip}, {LeftHip, RightHip},
	// Left arm
	{LeftShoulder, LeftElbow}, {LeftElbow, LeftWrist}, {LeftWrist, LeftPinky},
	{LeftWrist, LeftIndex}, {LeftWrist, LeftThumb}, {LeftPinky, LeftIndex},
	// Right arm
	{RightShoulder, RightElbow}, {RightElbow, RightWrist}, {RightWrist, RightPinky},
	{RightWrist, RightIndex}, {RightWrist, RightThumb}, {RightPinky, RightIndex},
	// Left leg
	{LeftHip, LeftKnee}, {LeftKnee, LeftAnkle}, {LeftAnkle, LeftHeel},
	{LeftHeel, LeftFootIndex}, {LeftAnkle, LeftFootIndex},
	// Right leg
	{RightHip, RightKnee}, {RightKnee, RightAnkle}, {RightAnkle, RightHeel},
	{RightHeel, RightFootIndex}, {RightAnkle, RightFootIndex},
}
