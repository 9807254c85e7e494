package wire

import (
	"encoding/binary"
	"time"

	"github.com/oakfin/kitefeed/internal/model"
)

// Packet payload lengths understood by DecodePacket. All multi-byte integers
// on the wire are big-endian; prices are fixed-point (integer paise, ÷100).
const (
	ltpPacketLen        = 8  // token + last price
	indexQuotePacketLen = 28 // token + ltp + H/L/O/C + change
	indexFullPacketLen  = 32 // index quote + exchange timestamp
	quotePacketLen      = 44 // tradeable quote: ltp, qty, avg, volume, buy/sell, OHLC
)

// DecodeMessage splits a binary frame into its raw packet payloads.
//
// Layout: [u16 packetCount] then packetCount × ([u16 length][length bytes]).
// If a declared length would read past the end of the buffer, decoding stops
// and the truncated remainder is discarded; packets decoded so far are still
// returned. A frame too short to carry a count yields nil.
func DecodeMessage(data []byte) [][]byte {
	if len(data) < 2 {
		return nil
	}

	count := int(binary.BigEndian.Uint16(data[0:2]))
	packets := make([][]byte, 0, count)

	offset := 2
	for i := 0; i < count; i++ {
		if offset+2 > len(data) {
			break
		}
		length := int(binary.BigEndian.Uint16(data[offset : offset+2]))
		offset += 2

		if offset+length > len(data) {
			// Truncated trailing packet: drop it and everything after.
			break
		}
		packets = append(packets, data[offset:offset+length])
		offset += length
	}

	return packets
}

// DecodePacket decodes one packet payload into tick.
//
// The first 4 bytes are always the instrument token. The remaining layout is
// selected by payload length and the index hint; unknown lengths leave only
// the token populated and the caller decides whether to drop the tick.
func DecodePacket(data []byte, isIndex bool, tick *model.Tick) {
	if len(data) < 4 {
		return
	}

	tick.Token = binary.BigEndian.Uint32(data[0:4])
	tick.IsIndex = isIndex

	switch {
	case len(data) == ltpPacketLen:
		tick.LastPrice = price(data[4:8])

	case isIndex && (len(data) == indexQuotePacketLen || len(data) == indexFullPacketLen):
		tick.LastPrice = price(data[4:8])
		tick.High = price(data[8:12])
		tick.Low = price(data[12:16])
		tick.Open = price(data[16:20])
		tick.Close = price(data[20:24])
		// data[24:28] is the net change; derived from LastPrice-Close, skipped.
		if len(data) == indexFullPacketLen {
			ts := binary.BigEndian.Uint32(data[28:32])
			tick.ExchangeTime = time.Unix(int64(ts), 0).Local()
		}

	case !isIndex && len(data) >= quotePacketLen:
		tick.LastPrice = price(data[4:8])
		tick.LastQuantity = binary.BigEndian.Uint32(data[8:12])
		tick.AveragePrice = price(data[12:16])
		tick.Volume = binary.BigEndian.Uint32(data[16:20])
		tick.BuyQuantity = binary.BigEndian.Uint32(data[20:24])
		tick.SellQuantity = binary.BigEndian.Uint32(data[24:28])
		tick.Open = price(data[28:32])
		tick.High = price(data[32:36])
		tick.Low = price(data[36:40])
		tick.Close = price(data[40:44])
		if len(data) > quotePacketLen {
			tick.HasDepth = true
		}
	}
}

// price converts a 4-byte big-endian fixed-point integer (price ×100) to float.
func price(b []byte) float64 {
	return float64(binary.BigEndian.Uint32(b)) / 100.0
}
