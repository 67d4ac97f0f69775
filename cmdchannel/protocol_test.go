package cmdchannel

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dagchain/pagechain/crypto"
	"github.com/dagchain/pagechain/domainmessage"
)

func roundTripRequest(t *testing.T, req *Request) *Request {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, writeRequestFrame(buf, req))
	got, err := readRequestFrame(buf)
	require.NoError(t, err)
	return got
}

func TestRequestBalanceRoundTrip(t *testing.T) {
	addr := crypto.Address{0x01}
	got := roundTripRequest(t, BalanceRequest(addr))
	require.Equal(t, reqBalance, got.kind)
	require.Equal(t, addr, got.addr)
}

func TestRequestSendRoundTrip(t *testing.T) {
	got := roundTripRequest(t, SendRequest([]byte("der-bytes"), crypto.Address{0x02}, 100, 5))
	require.Equal(t, reqSend, got.kind)
	require.Equal(t, []byte("der-bytes"), got.fromKeyDER)
	require.Equal(t, crypto.Address{0x02}, got.to)
	require.EqualValues(t, 100, got.amount)
	require.EqualValues(t, 5, got.fee)
}

func TestRequestUpdatePageRoundTrip(t *testing.T) {
	got := roundTripRequest(t, UpdatePageRequest([]byte("der"), "homepage", []byte("payload bytes"), 3))
	require.Equal(t, reqUpdatePage, got.kind)
	require.Equal(t, "homepage", got.pageName)
	require.Equal(t, []byte("payload bytes"), got.bytes)
	require.EqualValues(t, 3, got.fee)
}

func TestRequestBlocksRoundTrip(t *testing.T) {
	got := roundTripRequest(t, BlocksRequest(2, 9))
	require.Equal(t, reqBlocks, got.kind)
	require.EqualValues(t, 2, got.from)
	require.EqualValues(t, 9, got.until)
}

func TestRequestExitRoundTrip(t *testing.T) {
	got := roundTripRequest(t, ExitRequest())
	require.Equal(t, reqExit, got.kind)
}

func roundTripResponse(t *testing.T, resp *Response) *Response {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, writeResponseFrame(buf, resp))
	got, err := readResponseFrame(buf)
	require.NoError(t, err)
	return got
}

func TestResponseBalanceRoundTrip(t *testing.T) {
	got := roundTripResponse(t, BalanceResponse(domainmessage.WalletStatus{Balance: 42, MaxID: 7}))
	require.Equal(t, respBalance, got.kind)
	require.EqualValues(t, 42, got.status.Balance)
	require.EqualValues(t, 7, got.status.MaxID)
}

func TestResponseTransactionInfoNotFoundRoundTrip(t *testing.T) {
	got := roundTripResponse(t, NotFoundTransactionInfoResponse())
	require.Equal(t, respTransactionInfo, got.kind)
	require.False(t, got.found)
}

func TestResponseTransactionInfoFoundRoundTrip(t *testing.T) {
	var pub crypto.PublicKey
	pub[0] = 0x09
	loc := TxLocation{
		Tx: &domainmessage.TransferEnvelope{
			Header:        domainmessage.Transfer{ID: 1, To: crypto.Address{0x03}, Amount: 10, FeeAmt: 1},
			FromPublicKey: pub,
		},
		BlockID: 5,
	}
	got := roundTripResponse(t, TransactionInfoResponse(loc))
	require.True(t, got.found)
	require.EqualValues(t, 5, got.txLoc.BlockID)
	require.Equal(t, loc.Tx.Hash(), got.txLoc.Tx.Hash())
}

func TestResponseStatisticsRoundTrip(t *testing.T) {
	stats := Statistics{ChainHeight: 100, PeerCount: 3, MempoolSize: 12, CurrentTarget: domainmessage.MinTarget}
	got := roundTripResponse(t, StatisticsResponse(stats))
	require.Equal(t, stats, got.stats)
}

func TestResponseFailedRoundTrip(t *testing.T) {
	got := roundTripResponse(t, FailedResponse("balance too low"))
	require.Equal(t, respFailed, got.kind)
	require.Equal(t, "balance too low", got.reason)
}

func TestResponsePageUpdatesRoundTrip(t *testing.T) {
	got := roundTripResponse(t, PageUpdatesResponse([]uint64{1, 4, 9}))
	require.Equal(t, []uint64{1, 4, 9}, got.blockIDs)
}

func TestFrameRejectsOversizedLength(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	_, err := readRequestFrame(buf)
	require.Error(t, err)
}
