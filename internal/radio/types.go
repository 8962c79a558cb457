// Package radio defines the data model shared by the concentrator
// arbiter, the upstream/downstream forwarding engines, and the HAL
// adapters: gateway identity, filter policy, and the frame shapes
// exchanged with the concentrator hardware.
package radio

import "fmt"

// Identity is the gateway's 64-bit MAC-style identifier. It is split
// into two 32-bit halves, transmitted big-endian, at offsets 4..11 of
// every upstream/downstream datagram header.
type Identity uint64

// ParseIdentity parses a 16-nibble hex string into a gateway Identity.
func ParseIdentity(hex string) (Identity, error) {
	var id uint64
	n, err := fmt.Sscanf(hex, "%016x", &id)
	if err != nil || n != 1 {
		return 0, fmt.Errorf("radio: invalid gateway id %q: must be 16 hex digits", hex)
	}
	return Identity(id), nil
}

// Bytes returns the 8-byte big-endian encoding used on the wire.
func (id Identity) Bytes() [8]byte {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(id >> uint(56-8*i))
	}
	return b
}

func (id Identity) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// FilterPolicy controls which CRC outcomes are forwarded upstream.
type FilterPolicy struct {
	ForwardValidCRC bool
	ForwardBadCRC   bool
	ForwardNoCRC    bool
}

// Admits reports whether a frame with the given CRC status passes the
// policy.
func (p FilterPolicy) Admits(status CRCStatus) bool {
	switch status {
	case CRCOK:
		return p.ForwardValidCRC
	case CRCBad:
		return p.ForwardBadCRC
	case CRCNone:
		return p.ForwardNoCRC
	default:
		return false
	}
}

// CRCStatus is the hardware CRC check outcome for a received frame.
type CRCStatus int

const (
	CRCOK CRCStatus = iota
	CRCBad
	CRCNone
)

// Modulation identifies the radio modulation scheme.
type Modulation int

const (
	ModulationLoRa Modulation = iota
	ModulationFSK
)

func (m Modulation) String() string {
	switch m {
	case ModulationLoRa:
		return "LORA"
	case ModulationFSK:
		return "FSK"
	default:
		return "UNKNOWN"
	}
}

// CodingRate is the LoRa forward error correction rate.
type CodingRate int

const (
	CodingRateUndefined CodingRate = iota
	CodingRate4_5
	CodingRate4_6
	CodingRate4_7
	CodingRate4_8
)

func (c CodingRate) String() string {
	switch c {
	case CodingRate4_5:
		return "4/5"
	case CodingRate4_6:
		return "4/6"
	case CodingRate4_7:
		return "4/7"
	case CodingRate4_8:
		return "4/8"
	default:
		return "OFF"
	}
}

// ParseCodingRate accepts both canonical and historically-aliased coding
// rate strings ("4/6" aliases to the same rate some servers spell "2/3",
// and "4/8" to "1/2".
func ParseCodingRate(s string) (CodingRate, error) {
	switch s {
	case "4/5":
		return CodingRate4_5, nil
	case "4/6", "2/3":
		return CodingRate4_6, nil
	case "4/7":
		return CodingRate4_7, nil
	case "4/8", "1/2":
		return CodingRate4_8, nil
	default:
		return CodingRateUndefined, fmt.Errorf("radio: unknown coding rate %q", s)
	}
}

// DataRate is a LoRa spreading-factor/bandwidth pair, the `datr` field
// of both rxpk and txpk (e.g. "SF7BW125").
type DataRate struct {
	SpreadingFactor int // 7..12
	Bandwidth       int // Hz: 125000, 250000, or 500000
}

func (d DataRate) String() string {
	bw := d.Bandwidth / 1000
	return fmt.Sprintf("SF%dBW%d", d.SpreadingFactor, bw)
}

// ParseDataRate parses a "SFxxBWyyy" string. SF must be in 7..12 and BW
// in {125,250,500}; any other value rejects without partial state
// change.
func ParseDataRate(s string) (DataRate, error) {
	var sf, bw int
	n, err := fmt.Sscanf(s, "SF%dBW%d", &sf, &bw)
	if err != nil || n != 2 {
		return DataRate{}, fmt.Errorf("radio: malformed datarate %q", s)
	}
	if sf < 7 || sf > 12 {
		return DataRate{}, fmt.Errorf("radio: spreading factor %d out of range [7,12]", sf)
	}
	switch bw {
	case 125, 250, 500:
	default:
		return DataRate{}, fmt.Errorf("radio: bandwidth %d kHz not one of 125/250/500", bw)
	}
	return DataRate{SpreadingFactor: sf, Bandwidth: bw * 1000}, nil
}

// ReceivedFrame is a single radio frame fetched from the concentrator
// via the HAL's Receive operation.
type ReceivedFrame struct {
	Timestamp  uint32 // hardware µs timestamp, monotonic wrap permitted
	IFChain    uint8
	RFChain    uint8
	FreqHz     uint64
	CRCStatus  CRCStatus
	Modulation Modulation
	DataRate   DataRate   // LoRa only
	CodingRate CodingRate // LoRa only
	RSSI       float64    // dB
	SNR        float64    // dB, LoRa only
	Payload    []byte
}

// DispatchMode selects immediate vs. timestamped transmission.
type DispatchMode int

const (
	DispatchImmediate DispatchMode = iota
	DispatchTimestamped
)

// OutgoingFrame is a single radio frame handed to the concentrator via
// the HAL's Send operation.
type OutgoingFrame struct {
	Mode            DispatchMode
	TargetTimestamp uint32 // valid iff Mode == DispatchTimestamped
	FreqHz          uint64
	RFChain         uint8
	PowerDBm        int8
	Modulation      Modulation
	DataRate        DataRate
	CodingRate      CodingRate
	InvertPolarity  bool
	PreambleLen     uint16 // clamped to >= 6 for LoRa
	SuppressCRC     bool
	Payload         []byte
}

// MinPreambleLen is the minimum LoRa preamble length.
const MinPreambleLen = 6

// NormalizedPreamble returns the preamble length clamped to the LoRa
// minimum.
func (f OutgoingFrame) NormalizedPreamble() uint16 {
	if f.Modulation == ModulationLoRa && f.PreambleLen < MinPreambleLen {
		return MinPreambleLen
	}
	return f.PreambleLen
}
