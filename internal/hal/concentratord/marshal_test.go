package concentratord

import (
	"encoding/binary"
	"testing"

	"github.com/agsys/lora-pktfwd/internal/radio"
)

func buildUplinkFrame(t *testing.T, payload []byte) []byte {
	t.Helper()
	buf := make([]byte, uplinkHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], 12345)
	buf[4] = 0
	buf[5] = 1
	binary.LittleEndian.PutUint64(buf[6:14], 868100000)
	buf[14] = 1 // CRC ok
	buf[15] = 0 // LoRa
	buf[16] = 7
	binary.LittleEndian.PutUint32(buf[17:21], 125000)
	buf[21] = 1 // 4/5
	binary.LittleEndian.PutUint32(buf[22:26], uint32(int32(-4200)))
	binary.LittleEndian.PutUint32(buf[26:30], uint32(int32(950)))
	binary.LittleEndian.PutUint16(buf[30:32], uint16(len(payload)))
	copy(buf[32:], payload)
	return buf
}

func TestUnmarshalUplinkLoRa(t *testing.T) {
	data := buildUplinkFrame(t, []byte("hello"))
	frame, err := unmarshalUplink(data)
	if err != nil {
		t.Fatalf("unmarshalUplink: %v", err)
	}
	if frame.Timestamp != 12345 || frame.FreqHz != 868100000 {
		t.Fatalf("unexpected frame: %+v", frame)
	}
	if frame.CRCStatus != radio.CRCOK || frame.Modulation != radio.ModulationLoRa {
		t.Fatalf("unexpected classification: %+v", frame)
	}
	if frame.DataRate.SpreadingFactor != 7 || frame.DataRate.Bandwidth != 125000 {
		t.Fatalf("unexpected datarate: %+v", frame.DataRate)
	}
	if frame.CodingRate != radio.CodingRate4_5 {
		t.Fatalf("CodingRate = %v, want 4_5", frame.CodingRate)
	}
	if frame.RSSI != -42 || frame.SNR != 9.5 {
		t.Fatalf("unexpected rssi/snr: %v/%v", frame.RSSI, frame.SNR)
	}
	if string(frame.Payload) != "hello" {
		t.Fatalf("payload = %q, want %q", frame.Payload, "hello")
	}
}

func TestUnmarshalUplinkRejectsShortFrame(t *testing.T) {
	if _, err := unmarshalUplink([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected an error for a too-short frame")
	}
}

func TestUnmarshalUplinkRejectsBadLength(t *testing.T) {
	data := buildUplinkFrame(t, []byte("hi"))
	binary.LittleEndian.PutUint16(data[30:32], 9999)
	if _, err := unmarshalUplink(data); err == nil {
		t.Fatal("expected an error when declared length exceeds frame")
	}
}

func TestMarshalDownlinkRoundTripsCore(t *testing.T) {
	frame := radio.OutgoingFrame{
		Mode:            radio.DispatchTimestamped,
		TargetTimestamp: 5555,
		FreqHz:          868500000,
		RFChain:         1,
		Modulation:      radio.ModulationLoRa,
		DataRate:        radio.DataRate{SpreadingFactor: 9, Bandwidth: 125000},
		CodingRate:      radio.CodingRate4_6,
		Payload:         []byte("payload"),
	}
	buf := marshalDownlink(frame)

	if binary.LittleEndian.Uint32(buf[0:4]) != 5555 {
		t.Fatalf("target timestamp not encoded")
	}
	if binary.LittleEndian.Uint64(buf[6:14]) != 868500000 {
		t.Fatalf("frequency not encoded")
	}
	if buf[16] != 9 {
		t.Fatalf("spreading factor not encoded")
	}
	if buf[32] != 1 {
		t.Fatalf("dispatch mode byte should be 1 for timestamped, got %d", buf[32])
	}
	if string(buf[downlinkHeaderSize:]) != "payload" {
		t.Fatalf("payload not appended correctly")
	}
}
