package gwproto

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/agsys/lora-pktfwd/internal/radio"
)

// BuildPushData assembles a complete PUSH_DATA datagram: the 12-byte
// header, the JSON body `{"rxpk":[...]}`, and a trailing NUL
// terminator. frames have already passed the FilterPolicy; an empty
// slice yields ok=false so the caller can skip sending.
func BuildPushData(token Token, gwID radio.Identity, frames []radio.ReceivedFrame, now time.Time) (datagram []byte, ok bool) {
	if len(frames) == 0 {
		return nil, false
	}

	buf := bytes.NewBuffer(BuildHeader(PushData, token, gwID))
	buf.WriteString(`{"rxpk":[`)

	ts := now.UTC().Format("2006-01-02T15:04:05.000000Z")

	for i, f := range frames {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeRXPK(buf, f, ts)
	}

	buf.WriteString(`]}`)
	buf.WriteByte(0)

	return buf.Bytes(), true
}

// writeRXPK writes a single rxpk JSON object in a fixed key order.
// Ordering is not semantically required by the server but is kept
// stable to simplify golden tests.
func writeRXPK(buf *bytes.Buffer, f radio.ReceivedFrame, isoTime string) {
	fmt.Fprintf(buf, `{"tmst":%d,"time":"%s","chan":%d,"rfch":%d,"freq":%.6f,"stat":%d,"modu":"%s"`,
		f.Timestamp, isoTime, f.IFChain, f.RFChain, float64(f.FreqHz)/1e6, crcStat(f.CRCStatus), f.Modulation)

	if f.Modulation == radio.ModulationLoRa {
		fmt.Fprintf(buf, `,"datr":"%s","codr":"%s","lsnr":%.1f`, f.DataRate, f.CodingRate, f.SNR)
	}

	fmt.Fprintf(buf, `,"rssi":%d,"size":%d,"data":"%s"}`,
		int(f.RSSI), len(f.Payload), base64.StdEncoding.EncodeToString(f.Payload))
}

func crcStat(s radio.CRCStatus) int {
	switch s {
	case radio.CRCOK:
		return 1
	case radio.CRCBad:
		return -1
	default:
		return 0
	}
}
