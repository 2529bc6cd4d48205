package rtd

// Register read addresses. Writes set the top bit.
const (
	regConfig      uint8 = 0x00
	regRTDMSB      uint8 = 0x01
	regRTDLSB      uint8 = 0x02
	regHighFaultHi uint8 = 0x03
	regHighFaultLo uint8 = 0x04
	regLowFaultHi  uint8 = 0x05
	regLowFaultLo  uint8 = 0x06
	regFaultStatus uint8 = 0x07

	writeFlag uint8 = 0x80
)

// Config register bits.
const (
	configBias      uint8 = 0x80
	configModeAuto  uint8 = 0x40
	config1Shot     uint8 = 0x20
	config3Wire     uint8 = 0x10
	configFaultMask uint8 = 0x0C // fault detection cycle control
	configFaultStat uint8 = 0x02
	configFilt50Hz  uint8 = 0x01
)

// Fault status bits.
const (
	FaultHighThreshold uint8 = 0x80
	FaultLowThreshold  uint8 = 0x40
	FaultRefInLow      uint8 = 0x20
	FaultRefInHigh     uint8 = 0x10
	FaultRTDInLow      uint8 = 0x08
	FaultOverUnderVolt uint8 = 0x04
)

var faultNames = []struct {
	bit  uint8
	name string
}{
	{FaultHighThreshold, "rtd high threshold"},
	{FaultLowThreshold, "rtd low threshold"},
	{FaultRefInLow, "refin- > 0.85 x bias"},
	{FaultRefInHigh, "refin- < 0.85 x bias (force- open)"},
	{FaultRTDInLow, "rtdin- < 0.85 x bias (force- open)"},
	{FaultOverUnderVolt, "over/under voltage"},
}

// DecodeRaw splits a 16-bit RTD register value into the 15-bit conversion
// code and the fault flag carried in bit 0.
func DecodeRaw(reg uint16) (code uint16, fault bool) {
	return reg >> 1, reg&0x0001 != 0
}
