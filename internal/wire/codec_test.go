package wire

import (
	"encoding/binary"
	"encoding/json"
	"testing"
	"time"

	"github.com/oakfin/kitefeed/internal/model"
)

// buildMessage assembles a binary frame from packet payloads.
func buildMessage(packets ...[]byte) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, uint16(len(packets)))
	for _, p := range packets {
		lenBuf := make([]byte, 2)
		binary.BigEndian.PutUint16(lenBuf, uint16(len(p)))
		buf = append(buf, lenBuf...)
		buf = append(buf, p...)
	}
	return buf
}

// ltpPacket builds an 8-byte LTP packet for token with price×100 = paise.
func ltpPacket(token, paise uint32) []byte {
	p := make([]byte, 8)
	binary.BigEndian.PutUint32(p[0:4], token)
	binary.BigEndian.PutUint32(p[4:8], paise)
	return p
}

func TestDecodeMessage(t *testing.T) {
	p1 := ltpPacket(256265, 2250050)
	p2 := ltpPacket(291849, 2415075)

	tests := []struct {
		name string
		data []byte
		want int
	}{
		{"empty", nil, 0},
		{"count only", []byte{0, 0}, 0},
		{"one byte", []byte{0}, 0},
		{"single packet", buildMessage(p1), 1},
		{"two packets", buildMessage(p1, p2), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeMessage(tt.data)
			if len(got) != tt.want {
				t.Errorf("DecodeMessage returned %d packets, want %d", len(got), tt.want)
			}
		})
	}
}

func TestDecodeMessage_TruncatedTrailingPacket(t *testing.T) {
	p1 := ltpPacket(256265, 2250050)
	msg := buildMessage(p1, ltpPacket(291849, 2415075))

	// Cut the second packet short; the first must still decode cleanly.
	truncated := msg[:len(msg)-3]

	got := DecodeMessage(truncated)
	if len(got) != 1 {
		t.Fatalf("DecodeMessage returned %d packets, want 1", len(got))
	}
	if tok := binary.BigEndian.Uint32(got[0][0:4]); tok != 256265 {
		t.Errorf("surviving packet token = %d, want 256265", tok)
	}
}

func TestDecodeMessage_LengthPastBufferEnd(t *testing.T) {
	// Declared count of 1 with a declared length far past the buffer.
	data := []byte{0, 1, 0xFF, 0xFF, 1, 2, 3}
	if got := DecodeMessage(data); len(got) != 0 {
		t.Errorf("DecodeMessage returned %d packets, want 0", len(got))
	}
}

func TestDecodeMessage_NeverReadsPastBoundary(t *testing.T) {
	// Arbitrary junk of every length up to 64 bytes must not panic.
	for n := 0; n < 64; n++ {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i*7 + n)
		}
		DecodeMessage(data)
	}
}

func TestDecodePacket_LTP(t *testing.T) {
	var tick model.Tick
	DecodePacket(ltpPacket(256265, 2250050), false, &tick)

	if tick.Token != 256265 {
		t.Errorf("Token = %d, want 256265", tick.Token)
	}
	if tick.LastPrice != 22500.50 {
		t.Errorf("LastPrice = %v, want 22500.50", tick.LastPrice)
	}
}

func TestDecodePacket_IndexQuote(t *testing.T) {
	p := make([]byte, 28)
	binary.BigEndian.PutUint32(p[0:4], 291849)   // token
	binary.BigEndian.PutUint32(p[4:8], 2415075)  // ltp
	binary.BigEndian.PutUint32(p[8:12], 2420000) // high
	binary.BigEndian.PutUint32(p[12:16], 2400000)
	binary.BigEndian.PutUint32(p[16:20], 2405000)
	binary.BigEndian.PutUint32(p[20:24], 2410000)
	binary.BigEndian.PutUint32(p[24:28], 5075) // change, ignored

	var tick model.Tick
	DecodePacket(p, true, &tick)

	if tick.Token != 291849 {
		t.Errorf("Token = %d, want 291849", tick.Token)
	}
	if tick.LastPrice != 24150.75 {
		t.Errorf("LastPrice = %v, want 24150.75", tick.LastPrice)
	}
	if tick.High != 24200.00 {
		t.Errorf("High = %v, want 24200.00", tick.High)
	}
	if tick.Low != 24000.00 {
		t.Errorf("Low = %v, want 24000.00", tick.Low)
	}
	if tick.Open != 24050.00 {
		t.Errorf("Open = %v, want 24050.00", tick.Open)
	}
	if tick.Close != 24100.00 {
		t.Errorf("Close = %v, want 24100.00", tick.Close)
	}
	if !tick.IsIndex {
		t.Error("IsIndex = false, want true")
	}
	if !tick.ExchangeTime.IsZero() {
		t.Error("ExchangeTime should be zero for 28-byte index packet")
	}
}

func TestDecodePacket_IndexFullTimestamp(t *testing.T) {
	p := make([]byte, 32)
	binary.BigEndian.PutUint32(p[0:4], 291849)
	binary.BigEndian.PutUint32(p[4:8], 2415075)
	ts := uint32(1705328200)
	binary.BigEndian.PutUint32(p[28:32], ts)

	var tick model.Tick
	DecodePacket(p, true, &tick)

	want := time.Unix(int64(ts), 0).Local()
	if !tick.ExchangeTime.Equal(want) {
		t.Errorf("ExchangeTime = %v, want %v", tick.ExchangeTime, want)
	}
}

func TestDecodePacket_TradeableQuote(t *testing.T) {
	p := make([]byte, 44)
	fields := []uint32{
		408065,  // token
		98530,   // ltp 985.30
		150,     // last qty
		98200,   // avg 982.00
		1250000, // volume
		34000,   // buy qty
		29000,   // sell qty
		97000,   // open 970.00
		99000,   // high 990.00
		96500,   // low 965.00
		97500,   // close 975.00
	}
	for i, f := range fields {
		binary.BigEndian.PutUint32(p[i*4:i*4+4], f)
	}

	var tick model.Tick
	DecodePacket(p, false, &tick)

	if tick.Token != 408065 {
		t.Errorf("Token = %d, want 408065", tick.Token)
	}
	if tick.LastPrice != 985.30 {
		t.Errorf("LastPrice = %v, want 985.30", tick.LastPrice)
	}
	if tick.LastQuantity != 150 {
		t.Errorf("LastQuantity = %d, want 150", tick.LastQuantity)
	}
	if tick.AveragePrice != 982.00 {
		t.Errorf("AveragePrice = %v, want 982.00", tick.AveragePrice)
	}
	if tick.Volume != 1250000 {
		t.Errorf("Volume = %d, want 1250000", tick.Volume)
	}
	if tick.BuyQuantity != 34000 || tick.SellQuantity != 29000 {
		t.Errorf("Buy/Sell = %d/%d, want 34000/29000", tick.BuyQuantity, tick.SellQuantity)
	}
	if tick.Open != 970 || tick.High != 990 || tick.Low != 965 || tick.Close != 975 {
		t.Errorf("OHLC = %v/%v/%v/%v", tick.Open, tick.High, tick.Low, tick.Close)
	}
	if tick.HasDepth {
		t.Error("HasDepth = true for 44-byte packet, want false")
	}
}

func TestDecodePacket_UnknownLength(t *testing.T) {
	p := make([]byte, 13)
	binary.BigEndian.PutUint32(p[0:4], 12345)

	var tick model.Tick
	DecodePacket(p, false, &tick)

	if tick.Token != 12345 {
		t.Errorf("Token = %d, want 12345", tick.Token)
	}
	if tick.LastPrice != 0 {
		t.Errorf("LastPrice = %v, want 0 for unknown layout", tick.LastPrice)
	}
}

func TestControlMessages(t *testing.T) {
	tests := []struct {
		name  string
		build func() ([]byte, error)
		want  string
	}{
		{
			"subscribe",
			func() ([]byte, error) { return SubscribeMessage([]uint32{256265, 408065}) },
			`{"a":"subscribe","v":[256265,408065]}`,
		},
		{
			"mode",
			func() ([]byte, error) { return ModeMessage(model.ModeQuote, []uint32{256265}) },
			`{"a":"mode","v":["quote",[256265]]}`,
		},
		{
			"unsubscribe",
			func() ([]byte, error) { return UnsubscribeMessage([]uint32{408065}) },
			`{"a":"unsubscribe","v":[408065]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.build()
			if err != nil {
				t.Fatalf("build failed: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
			if !json.Valid(got) {
				t.Errorf("frame is not valid JSON: %s", got)
			}
		})
	}
}
