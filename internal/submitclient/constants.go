package submitclient

// Wire values of the verification API.
const (
	noError          = "no Error"
	stateDone        = "done"
	frameRate        = 30.0
	videoFrameOffset = 30
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
	PercentageMultiplier    = 100
)
