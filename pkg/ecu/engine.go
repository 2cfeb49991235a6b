package ecu

import (
	"encoding/binary"
	"fmt"
)

// Engine data tables.
const (
	TableEngine byte = 0x11

	engineDataLen = 14
)

// EngineData is the decoded engine data table.
type EngineData struct {
	RPM        int
	TPSVolts   float64
	TPSPercent float64
	ECTVolts   float64
	ECTCelsius int
	IATVolts   float64
	IATCelsius int
	MAPVolts   float64
	MAPKPa     int
	Battery    float64
	SpeedKPH   int
}

// DecodeEngineData decodes the body of table 0x11.
func DecodeEngineData(data []byte) (EngineData, error) {
	if len(data) < engineDataLen {
		return EngineData{}, fmt.Errorf("%w: engine data of %d bytes", ErrShortFrame, len(data))
	}
	return EngineData{
		RPM:        int(binary.BigEndian.Uint16(data[0:2])),
		TPSVolts:   sensorVolts(data[2]),
		TPSPercent: float64(data[3]) / 1.6,
		ECTVolts:   sensorVolts(data[4]),
		ECTCelsius: int(data[5]) - 40,
		IATVolts:   sensorVolts(data[6]),
		IATCelsius: int(data[7]) - 40,
		MAPVolts:   sensorVolts(data[8]),
		MAPKPa:     int(data[9]),
		Battery:    float64(data[12]) / 10,
		SpeedKPH:   int(data[13]),
	}, nil
}

// EncodeEngineData is the inverse of DecodeEngineData, values are
// truncated to the table resolution.
func EncodeEngineData(d EngineData) []byte {
	data := make([]byte, engineDataLen)
	binary.BigEndian.PutUint16(data[0:2], uint16(clampInt(d.RPM, 0, 0xffff)))
	data[2] = volts(d.TPSVolts)
	data[3] = clampByte(d.TPSPercent * 1.6)
	data[4] = volts(d.ECTVolts)
	data[5] = byte(clampInt(d.ECTCelsius+40, 0, 0xff))
	data[6] = volts(d.IATVolts)
	data[7] = byte(clampInt(d.IATCelsius+40, 0, 0xff))
	data[8] = volts(d.MAPVolts)
	data[9] = byte(clampInt(d.MAPKPa, 0, 0xff))
	data[12] = clampByte(d.Battery * 10)
	data[13] = byte(clampInt(d.SpeedKPH, 0, 0xff))
	return data
}

// sensor readings are 8-bit over 0..5V.
func sensorVolts(b byte) float64 {
	return float64(b) / 51
}

func volts(v float64) byte {
	return clampByte(v * 51)
}

func clampByte(v float64) byte {
	return byte(clampInt(int(v+0.5), 0, 0xff))
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// EngineDataConsumer receives decoded engine data.
type EngineDataConsumer interface {
	EngineDataChanged(EngineData)
}

// EngineDataFunc is the func form of EngineDataConsumer.
type EngineDataFunc func(EngineData)

// EngineDataChanged implements EngineDataConsumer.
func (f EngineDataFunc) EngineDataChanged(d EngineData) {
	f(d)
}
