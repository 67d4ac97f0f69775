package network

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dagchain/pagechain/crypto"
	"github.com/dagchain/pagechain/domainmessage"
	"github.com/dagchain/pagechain/store"
)

func roundTripFrame(t *testing.T, e *Envelope) *Envelope {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, writeFrame(buf, e))
	got, err := readFrame(buf)
	require.NoError(t, err)
	return got
}

func TestFrameOnConnectedRoundTrip(t *testing.T) {
	got := roundTripFrame(t, OnConnectedEnvelope(9977))
	require.Equal(t, envelopeOnConnected, got.kind)
	require.EqualValues(t, 9977, got.port)
}

func TestFrameKnownNodeRoundTrip(t *testing.T) {
	got := roundTripFrame(t, KnownNodeEnvelope("127.0.0.1:9977"))
	require.Equal(t, envelopeKnownNode, got.kind)
	require.Equal(t, "127.0.0.1:9977", got.knownNode)
}

func TestFramePingPacketRoundTrip(t *testing.T) {
	got := roundTripFrame(t, PacketEnvelope(PingPacket()))
	require.Equal(t, envelopePacket, got.kind)
	require.Equal(t, packetPing, got.packet.kind)
}

func TestFrameBlockPacketRoundTrip(t *testing.T) {
	block := &domainmessage.Block{
		BlockID:   3,
		RewardTo:  crypto.Address{0x09},
		Timestamp: 42,
		Target:    domainmessage.MinTarget,
	}
	payloadHash := crypto.HashData([]byte("a page"))
	payloads := map[crypto.Hash]store.DataUnit{payloadHash: store.DataUnit("a page")}

	got := roundTripFrame(t, PacketEnvelope(BlockPacket(block, payloads)))
	require.Equal(t, packetBlock, got.packet.kind)
	require.Equal(t, block.BlockID, got.packet.block.BlockID)
	require.Equal(t, payloads, got.packet.pagePayloads)
}

func TestFrameBlockRequestPacketRoundTrip(t *testing.T) {
	got := roundTripFrame(t, PacketEnvelope(BlockRequestPacket(17)))
	require.Equal(t, packetBlockRequest, got.packet.kind)
	require.EqualValues(t, 17, got.packet.blockRequestID)
}

func TestFrameRejectsOversizedLengthPrefix(t *testing.T) {
	buf := &bytes.Buffer{}
	var lenBytes [4]byte
	lenBytes[0], lenBytes[1], lenBytes[2], lenBytes[3] = 0xFF, 0xFF, 0xFF, 0xFF
	buf.Write(lenBytes[:])

	_, err := readFrame(buf)
	require.Error(t, err)
}
