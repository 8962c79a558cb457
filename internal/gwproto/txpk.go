package gwproto

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"

	"github.com/agsys/lora-pktfwd/internal/radio"
)

// pullRespEnvelope mirrors the `{"txpk": {...}}` body of a PULL_RESP
// datagram. The mandatory fields freq, rfch, size and data are pointers
// so a missing key is distinguishable from a JSON-default zero value,
// as are tmst, powe and prea. The flags imme, ipol and ncrc are plain
// bools (absent reads as false), and modu, datr and codr are plain
// strings (absent reads as "", which the parser rejects).
type pullRespEnvelope struct {
	TXPK txpkBody `json:"txpk"`
}

type txpkBody struct {
	Imme     bool     `json:"imme"`
	Tmst     *uint32  `json:"tmst,omitempty"`
	FreqMHz  *float64 `json:"freq"`
	RFChain  *uint8   `json:"rfch"`
	Modu     string   `json:"modu"`
	DatR     string   `json:"datr,omitempty"`
	CodR     string   `json:"codr,omitempty"`
	PowerDBm *int8    `json:"powe,omitempty"`
	IPol     bool     `json:"ipol,omitempty"`
	Prea     *uint16  `json:"prea,omitempty"`
	NCRC     bool     `json:"ncrc,omitempty"`
	Size     *int     `json:"size"`
	Data     *string  `json:"data"`
}

// TXPKWarning describes a recoverable oddity found while decoding a
// txpk body: the TX is still submitted, but the caller should log it.
type TXPKWarning struct {
	Message string
}

func (w *TXPKWarning) Error() string { return w.Message }

// ParsePullResp decodes a PULL_RESP body (the bytes following the
// 4-byte header) into an OutgoingFrame ready for the arbiter. FSK
// requests are rejected outright; a size/data length mismatch is
// reported as a non-fatal warning rather than a hard error.
func ParsePullResp(body []byte) (frame radio.OutgoingFrame, warn error, err error) {
	var env pullRespEnvelope
	if unmarshalErr := json.Unmarshal(body, &env); unmarshalErr != nil {
		return radio.OutgoingFrame{}, nil, fmt.Errorf("gwproto: malformed txpk body: %w", unmarshalErr)
	}
	tx := env.TXPK

	if !tx.Imme && tx.Tmst == nil {
		return radio.OutgoingFrame{}, nil, fmt.Errorf("gwproto: txpk has neither imme nor tmst")
	}
	if tx.FreqMHz == nil {
		return radio.OutgoingFrame{}, nil, fmt.Errorf("gwproto: txpk missing mandatory field freq")
	}
	if tx.RFChain == nil {
		return radio.OutgoingFrame{}, nil, fmt.Errorf("gwproto: txpk missing mandatory field rfch")
	}
	if tx.Size == nil {
		return radio.OutgoingFrame{}, nil, fmt.Errorf("gwproto: txpk missing mandatory field size")
	}
	if tx.Data == nil {
		return radio.OutgoingFrame{}, nil, fmt.Errorf("gwproto: txpk missing mandatory field data")
	}

	var modu radio.Modulation
	switch tx.Modu {
	case "LORA":
		modu = radio.ModulationLoRa
	case "FSK":
		return radio.OutgoingFrame{}, nil, fmt.Errorf("gwproto: FSK downstream is not supported")
	default:
		return radio.OutgoingFrame{}, nil, fmt.Errorf("gwproto: unknown modulation %q", tx.Modu)
	}

	var datr radio.DataRate
	var codr radio.CodingRate
	if modu == radio.ModulationLoRa {
		var derr error
		datr, derr = radio.ParseDataRate(tx.DatR)
		if derr != nil {
			return radio.OutgoingFrame{}, nil, fmt.Errorf("gwproto: txpk %w", derr)
		}
		codr, derr = radio.ParseCodingRate(tx.CodR)
		if derr != nil {
			return radio.OutgoingFrame{}, nil, fmt.Errorf("gwproto: txpk %w", derr)
		}
	}

	payload, decErr := base64.StdEncoding.DecodeString(*tx.Data)
	if decErr != nil {
		return radio.OutgoingFrame{}, nil, fmt.Errorf("gwproto: txpk data is not valid base64: %w", decErr)
	}
	if *tx.Size != len(payload) {
		warn = &TXPKWarning{Message: fmt.Sprintf("gwproto: txpk size field %d does not match decoded payload length %d", *tx.Size, len(payload))}
	}

	mode := radio.DispatchImmediate
	var targetTS uint32
	if !tx.Imme {
		mode = radio.DispatchTimestamped
		targetTS = *tx.Tmst
	}

	var power int8
	if tx.PowerDBm != nil {
		power = *tx.PowerDBm
	}

	var preamble uint16
	if tx.Prea != nil {
		preamble = *tx.Prea
	}

	frame = radio.OutgoingFrame{
		Mode:            mode,
		TargetTimestamp: targetTS,
		FreqHz:          uint64(math.Round(*tx.FreqMHz * 1e6)),
		RFChain:         *tx.RFChain,
		PowerDBm:        power,
		Modulation:      modu,
		DataRate:        datr,
		CodingRate:      codr,
		InvertPolarity:  tx.IPol,
		PreambleLen:     preamble,
		SuppressCRC:     tx.NCRC,
		Payload:         payload,
	}
	frame.PreambleLen = frame.NormalizedPreamble()

	return frame, warn, nil
}
