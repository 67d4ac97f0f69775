package cmdchannel

import (
	"github.com/dagchain/pagechain/crypto"
	"github.com/dagchain/pagechain/domainmessage"
)

// signTransfer signs header with priv and assembles the envelope the
// network and chain engine expect. The signature covers the header
// hash only, not the public key or exponent.
func signTransfer(priv *crypto.PrivateKey, pub crypto.PublicKey, header domainmessage.Transfer) (*domainmessage.TransferEnvelope, error) {
	env := &domainmessage.TransferEnvelope{
		Header:        header,
		FromPublicKey: pub,
		Exponent:      priv.Exponent(),
	}
	sig, err := priv.Sign(env.HeaderHash())
	if err != nil {
		return nil, err
	}
	env.Signature = sig
	return env, nil
}

// signPage signs header with priv and assembles the envelope.
func signPage(priv *crypto.PrivateKey, pub crypto.PublicKey, header domainmessage.Page) (*domainmessage.PageEnvelope, error) {
	env := &domainmessage.PageEnvelope{
		Header:        header,
		FromPublicKey: pub,
		Exponent:      priv.Exponent(),
	}
	sig, err := priv.Sign(env.HeaderHash())
	if err != nil {
		return nil, err
	}
	env.Signature = sig
	return env, nil
}
