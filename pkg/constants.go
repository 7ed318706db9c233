package shared

const (
	// Development manufacturer range; Garmin Connect accepts these for
	// custom equipment that has no registered manufacturer ID.
	RogueManufacturerID = 65534

	RogueEchoBikeProductID  = 1001
	RogueEchoRowerProductID = 1002
	GenericBikeProductID    = 1003
	GenericRowerProductID   = 1004

	DefaultSerialNumber    = 123456789
	DefaultSoftwareVersion = 100 // scaled x100, i.e. v1.00
	DefaultHardwareVersion = 1

	DefaultOutputDir = "fit_files"
)
