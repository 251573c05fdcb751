package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrSignatureInvalid covers every sign-in verification failure.
var ErrSignatureInvalid = errors.New("signature verification failed")

// SignInMessage is the parsed sign-in-with-wallet message
// (EIP-4361-shaped plain text).
type SignInMessage struct {
	Domain  string
	Address string
	Nonce   string
	Raw     string
}

// ParseSignInMessage extracts domain, address and nonce from the signed
// text. Expected shape:
//
//	<domain> wants you to sign in with your Ethereum account:
//	<address>
//	...
//	Nonce: <nonce>
func ParseSignInMessage(raw string) (*SignInMessage, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: malformed sign-in message", ErrSignatureInvalid)
	}

	const marker = " wants you to sign in with your Ethereum account:"
	if !strings.HasSuffix(lines[0], marker) {
		return nil, fmt.Errorf("%w: malformed sign-in message header", ErrSignatureInvalid)
	}
	msg := &SignInMessage{
		Domain:  strings.TrimSuffix(lines[0], marker),
		Address: strings.TrimSpace(lines[1]),
		Raw:     raw,
	}
	if !common.IsHexAddress(msg.Address) {
		return nil, fmt.Errorf("%w: %q is not a wallet address", ErrSignatureInvalid, msg.Address)
	}

	for _, line := range lines[2:] {
		if strings.HasPrefix(line, "Nonce: ") {
			msg.Nonce = strings.TrimPrefix(line, "Nonce: ")
		}
	}
	if msg.Nonce == "" {
		return nil, fmt.Errorf("%w: sign-in message carries no nonce", ErrSignatureInvalid)
	}
	return msg, nil
}

// VerifySignature checks that signature is a personal-sign (EIP-191)
// signature of msg.Raw by msg.Address.
func VerifySignature(msg *SignInMessage, signature string) error {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return fmt.Errorf("%w: signature is not hex: %v", ErrSignatureInvalid, err)
	}
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("%w: signature has length %d, want %d", ErrSignatureInvalid, len(sig), crypto.SignatureLength)
	}

	// Wallets return V as 27/28; go-ethereum expects 0/1.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig = append([]byte(nil), sig...)
		sig[crypto.RecoveryIDOffset] -= 27
	}

	hash := accounts.TextHash([]byte(msg.Raw))
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return fmt.Errorf("%w: could not recover signer: %v", ErrSignatureInvalid, err)
	}

	recovered := crypto.PubkeyToAddress(*pub)
	if !strings.EqualFold(recovered.Hex(), msg.Address) {
		return fmt.Errorf("%w: recovered signer %s does not match message address", ErrSignatureInvalid, recovered.Hex())
	}
	return nil
}
