package concentratord

import (
	"encoding/binary"
	"fmt"

	"github.com/agsys/lora-pktfwd/internal/radio"
)

// Wire layout for an uplink event frame (simplified, fixed-width):
//
//	0..3   : tmst (uint32 LE)
//	4      : if-chain
//	5      : rf-chain
//	6..13  : frequency Hz (uint64 LE)
//	14     : CRC status (0=none, 1=ok, 2=bad)
//	15     : modulation (0=LoRa, 1=FSK)
//	16     : spreading factor (LoRa only)
//	17..20 : bandwidth Hz (uint32 LE, LoRa only)
//	21     : coding rate (1=4/5 .. 4=4/8)
//	22..25 : rssi ×100 (int32 LE)
//	26..29 : snr ×100 (int32 LE)
//	30..31 : payload length (uint16 LE)
//	32..   : payload
const uplinkHeaderSize = 32

func unmarshalUplink(data []byte) (radio.ReceivedFrame, error) {
	if len(data) < uplinkHeaderSize {
		return radio.ReceivedFrame{}, fmt.Errorf("concentratord: uplink frame too short: %d bytes", len(data))
	}

	f := radio.ReceivedFrame{
		Timestamp: binary.LittleEndian.Uint32(data[0:4]),
		IFChain:   data[4],
		RFChain:   data[5],
		FreqHz:    binary.LittleEndian.Uint64(data[6:14]),
	}

	switch data[14] {
	case 1:
		f.CRCStatus = radio.CRCOK
	case 2:
		f.CRCStatus = radio.CRCBad
	default:
		f.CRCStatus = radio.CRCNone
	}

	if data[15] == 1 {
		f.Modulation = radio.ModulationFSK
	} else {
		f.Modulation = radio.ModulationLoRa
		f.DataRate = radio.DataRate{
			SpreadingFactor: int(data[16]),
			Bandwidth:       int(binary.LittleEndian.Uint32(data[17:21])),
		}
		f.CodingRate = codingRateFromByte(data[21])
	}

	f.RSSI = float64(int32(binary.LittleEndian.Uint32(data[22:26]))) / 100
	f.SNR = float64(int32(binary.LittleEndian.Uint32(data[26:30]))) / 100

	length := binary.LittleEndian.Uint16(data[30:32])
	if int(uplinkHeaderSize)+int(length) > len(data) {
		return radio.ReceivedFrame{}, fmt.Errorf("concentratord: uplink payload length %d exceeds frame", length)
	}
	f.Payload = append([]byte(nil), data[uplinkHeaderSize:uplinkHeaderSize+int(length)]...)

	return f, nil
}

// Wire layout for a downlink command frame: the uplink frame's size
// plus one dispatch-mode byte, with several offsets carrying different
// fields. The payload length is not encoded; it is everything after
// byte 32.
//
//	0..3   : target tmst (uint32 LE)
//	4      : unused (0)
//	5      : rf-chain
//	6..13  : frequency Hz (uint64 LE)
//	14     : TX power dBm (int8)
//	15     : modulation (0=LoRa, 1=FSK)
//	16     : spreading factor (LoRa only)
//	17..20 : bandwidth Hz (uint32 LE, LoRa only)
//	21     : coding rate (1=4/5 .. 4=4/8, LoRa only)
//	22     : invert polarity (0/1)
//	23     : suppress CRC (0/1)
//	24..29 : unused (0)
//	30..31 : preamble length (uint16 LE)
//	32     : dispatch mode (0=immediate, 1=timestamped)
//	33..   : payload
const downlinkHeaderSize = uplinkHeaderSize + 1

func marshalDownlink(frame radio.OutgoingFrame) []byte {
	buf := make([]byte, downlinkHeaderSize+len(frame.Payload))

	binary.LittleEndian.PutUint32(buf[0:4], frame.TargetTimestamp)
	buf[5] = frame.RFChain
	binary.LittleEndian.PutUint64(buf[6:14], frame.FreqHz)
	buf[14] = byte(frame.PowerDBm)

	if frame.Modulation == radio.ModulationFSK {
		buf[15] = 1
	} else {
		buf[16] = byte(frame.DataRate.SpreadingFactor)
		binary.LittleEndian.PutUint32(buf[17:21], uint32(frame.DataRate.Bandwidth))
		buf[21] = codingRateToByte(frame.CodingRate)
	}

	if frame.InvertPolarity {
		buf[22] = 1
	}
	if frame.SuppressCRC {
		buf[23] = 1
	}
	binary.LittleEndian.PutUint16(buf[30:32], uint16(frame.NormalizedPreamble()))

	if frame.Mode == radio.DispatchImmediate {
		buf[32] = 0
	} else {
		buf[32] = 1
	}
	copy(buf[downlinkHeaderSize:], frame.Payload)

	return buf
}

func codingRateFromByte(b byte) radio.CodingRate {
	switch b {
	case 1:
		return radio.CodingRate4_5
	case 2:
		return radio.CodingRate4_6
	case 3:
		return radio.CodingRate4_7
	case 4:
		return radio.CodingRate4_8
	default:
		return radio.CodingRateUndefined
	}
}

func codingRateToByte(c radio.CodingRate) byte {
	switch c {
	case radio.CodingRate4_5:
		return 1
	case radio.CodingRate4_6:
		return 2
	case radio.CodingRate4_7:
		return 3
	case radio.CodingRate4_8:
		return 4
	default:
		return 0
	}
}
