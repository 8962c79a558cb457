package gwproto

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/agsys/lora-pktfwd/internal/radio"
)

func TestBuildHeaderAndParseAck(t *testing.T) {
	gwID, err := radio.ParseIdentity("00800000a0cf7e58")
	if err != nil {
		t.Fatalf("ParseIdentity: %v", err)
	}
	token := Token{0x12, 0x34}

	header := BuildHeader(PushData, token, gwID)
	if len(header) != HeaderSize {
		t.Fatalf("header length = %d, want %d", len(header), HeaderSize)
	}
	if header[0] != ProtocolVersion || header[3] != PushData {
		t.Fatalf("unexpected header bytes: %x", header)
	}

	ack := []byte{ProtocolVersion, token[0], token[1], PushAck}
	if !ParseAck(ack, PushAck, token) {
		t.Fatal("ParseAck rejected a well-formed ack")
	}
	if ParseAck(ack, PullAck, token) {
		t.Fatal("ParseAck accepted the wrong packet type")
	}
	wrongToken := Token{0xff, 0xff}
	if ParseAck(ack, PushAck, wrongToken) {
		t.Fatal("ParseAck accepted a mismatched token")
	}
	if ParseAck([]byte{1, 2}, PushAck, token) {
		t.Fatal("ParseAck accepted a short datagram")
	}
}

func TestParseHeader(t *testing.T) {
	token := Token{0xab, 0xcd}
	data := []byte{ProtocolVersion, token[0], token[1], PullData, 0, 0, 0, 0, 0, 0, 0, 0}
	pt, gotToken, ok := ParseHeader(data)
	if !ok || pt != PullData || gotToken != token {
		t.Fatalf("ParseHeader = (%d, %v, %v), want (%d, %v, true)", pt, gotToken, ok, PullData, token)
	}
	if _, _, ok := ParseHeader([]byte{1, 2}); ok {
		t.Fatal("ParseHeader accepted a short datagram")
	}
}

func TestBuildPushDataEmptyFrames(t *testing.T) {
	gwID, _ := radio.ParseIdentity("00800000a0cf7e58")
	if _, ok := BuildPushData(Token{}, gwID, nil, time.Now()); ok {
		t.Fatal("BuildPushData should refuse to build a datagram with no frames")
	}
}

func TestBuildPushDataLoRaFrame(t *testing.T) {
	gwID, _ := radio.ParseIdentity("00800000a0cf7e58")
	frame := radio.ReceivedFrame{
		Timestamp:  12345,
		IFChain:    0,
		RFChain:    0,
		FreqHz:     868100000,
		CRCStatus:  radio.CRCOK,
		Modulation: radio.ModulationLoRa,
		DataRate:   radio.DataRate{SpreadingFactor: 7, Bandwidth: 125000},
		CodingRate: radio.CodingRate4_5,
		RSSI:       -42,
		SNR:        9.5,
		Payload:    []byte("hello"),
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	datagram, ok := BuildPushData(Token{0x01, 0x02}, gwID, []radio.ReceivedFrame{frame}, now)
	if !ok {
		t.Fatal("BuildPushData returned ok=false for a non-empty frame slice")
	}
	if datagram[len(datagram)-1] != 0 {
		t.Fatal("datagram is not NUL-terminated")
	}
	body := string(datagram[HeaderSize : len(datagram)-1])
	if !strings.HasPrefix(body, `{"rxpk":[{`) {
		t.Fatalf("unexpected body prefix: %s", body)
	}
	for _, want := range []string{`"tmst":12345`, `"datr":"SF7BW125"`, `"codr":"4/5"`, `"lsnr":9.5`, `"data":"aGVsbG8="`} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q: %s", want, body)
		}
	}
}

func TestBuildPushDataFSKFrameOmitsLoRaFields(t *testing.T) {
	gwID, _ := radio.ParseIdentity("00800000a0cf7e58")
	frame := radio.ReceivedFrame{
		Timestamp:  1,
		FreqHz:     868100000,
		CRCStatus:  radio.CRCNone,
		Modulation: radio.ModulationFSK,
		RSSI:       -80,
		Payload:    []byte{0x01, 0x02},
	}
	datagram, ok := BuildPushData(Token{}, gwID, []radio.ReceivedFrame{frame}, time.Now())
	if !ok {
		t.Fatal("BuildPushData returned ok=false")
	}
	body := string(datagram[HeaderSize : len(datagram)-1])
	for _, absent := range []string{`"datr"`, `"codr"`, `"lsnr"`} {
		if strings.Contains(body, absent) {
			t.Fatalf("FSK body should omit %s: %s", absent, body)
		}
	}
	if !strings.Contains(body, `"stat":0`) {
		t.Fatalf("expected stat 0 for no-CRC frame: %s", body)
	}
}

func TestParsePullRespImmediate(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("abc"))
	body := []byte(`{"txpk":{"imme":true,"freq":868.1,"rfch":0,"powe":14,"modu":"LORA","datr":"SF7BW125","codr":"4/5","ipol":true,"size":3,"data":"` + payload + `"}}`)

	frame, warn, err := ParsePullResp(body)
	if err != nil {
		t.Fatalf("ParsePullResp: %v", err)
	}
	if warn != nil {
		t.Fatalf("unexpected warning: %v", warn)
	}
	if frame.Mode != radio.DispatchImmediate {
		t.Fatalf("Mode = %v, want immediate", frame.Mode)
	}
	if frame.PowerDBm != 14 || !frame.InvertPolarity {
		t.Fatalf("unexpected frame: %+v", frame)
	}
	if string(frame.Payload) != "abc" {
		t.Fatalf("Payload = %q, want %q", frame.Payload, "abc")
	}
}

func TestParsePullRespTimestamped(t *testing.T) {
	body := []byte(`{"txpk":{"tmst":9999,"freq":868.5,"rfch":1,"modu":"LORA","datr":"SF12BW125","codr":"2/3","size":2,"data":"AAA="}}`)
	frame, _, err := ParsePullResp(body)
	if err != nil {
		t.Fatalf("ParsePullResp: %v", err)
	}
	if frame.Mode != radio.DispatchTimestamped || frame.TargetTimestamp != 9999 {
		t.Fatalf("unexpected dispatch: %+v", frame)
	}
	if frame.CodingRate != radio.CodingRate4_6 {
		t.Fatalf("codr alias 2/3 should map to CodingRate4_6, got %v", frame.CodingRate)
	}
}

func TestParsePullRespRejectsFSK(t *testing.T) {
	body := []byte(`{"txpk":{"imme":true,"freq":868.1,"rfch":0,"modu":"FSK","size":2,"data":"AAA="}}`)
	if _, _, err := ParsePullResp(body); err == nil {
		t.Fatal("ParsePullResp should reject FSK downstream")
	}
}

func TestParsePullRespRejectsMissingTimingField(t *testing.T) {
	body := []byte(`{"txpk":{"freq":868.1,"rfch":0,"modu":"LORA","datr":"SF7BW125","codr":"4/5","size":2,"data":"AAA="}}`)
	if _, _, err := ParsePullResp(body); err == nil {
		t.Fatal("ParsePullResp should reject a txpk with neither imme nor tmst")
	}
}

func TestParsePullRespRejectsMissingFreq(t *testing.T) {
	body := []byte(`{"txpk":{"imme":true,"rfch":0,"modu":"LORA","datr":"SF7BW125","codr":"4/5","size":2,"data":"AAA="}}`)
	if _, _, err := ParsePullResp(body); err == nil {
		t.Fatal("ParsePullResp should reject a txpk missing the mandatory freq field")
	}
}

func TestParsePullRespRejectsMissingSize(t *testing.T) {
	body := []byte(`{"txpk":{"imme":true,"freq":868.1,"rfch":0,"modu":"LORA","datr":"SF7BW125","codr":"4/5","data":"AAA="}}`)
	if _, _, err := ParsePullResp(body); err == nil {
		t.Fatal("ParsePullResp should reject a txpk missing the mandatory size field")
	}
}

func TestParsePullRespSizeMismatchWarns(t *testing.T) {
	body := []byte(`{"txpk":{"imme":true,"freq":868.1,"rfch":0,"modu":"LORA","datr":"SF7BW125","codr":"4/5","size":99,"data":"AAA="}}`)
	frame, warn, err := ParsePullResp(body)
	if err != nil {
		t.Fatalf("ParsePullResp: %v", err)
	}
	if warn == nil {
		t.Fatal("expected a size-mismatch warning")
	}
	if len(frame.Payload) != 2 {
		t.Fatalf("frame should still be usable despite the warning, got payload %v", frame.Payload)
	}
}

func TestParsePullRespPreambleClamped(t *testing.T) {
	body := []byte(`{"txpk":{"imme":true,"freq":868.1,"rfch":0,"modu":"LORA","datr":"SF7BW125","codr":"4/5","prea":3,"size":2,"data":"AAA="}}`)
	frame, _, err := ParsePullResp(body)
	if err != nil {
		t.Fatalf("ParsePullResp: %v", err)
	}
	if frame.PreambleLen != radio.MinPreambleLen {
		t.Fatalf("PreambleLen = %d, want clamped to %d", frame.PreambleLen, radio.MinPreambleLen)
	}
}
