package cli

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/levyledger/levyd/internal/codec/addresscodec"
	"github.com/levyledger/levyd/internal/crypto"
)

var (
	keygenJSON       bool
	keygenFromSecret string
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an account keypair",
	Long: `Generate a secp256k1 keypair and print the derived account identity.

The address is the base58check rendering of the 20-byte account ID; the
secret is the base58check rendering of the private scalar. Anyone holding
the secret controls the account, so store it accordingly.

With --from-secret the identity is re-derived from an existing secret
instead of generating a new one.`,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)

	keygenCmd.Flags().BoolVar(&keygenJSON, "json", false, "print the keypair as JSON")
	keygenCmd.Flags().StringVar(&keygenFromSecret, "from-secret", "", "derive the identity from an existing secret")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	var (
		pair *crypto.KeyPair
		err  error
	)
	if keygenFromSecret != "" {
		secret, decErr := addresscodec.DecodeSecret(keygenFromSecret)
		if decErr != nil {
			return fmt.Errorf("decode secret: %w", decErr)
		}
		pair, err = crypto.KeyPairFromSecret(secret)
		crypto.SecureErase(secret)
	} else {
		pair, err = crypto.GenerateKeyPair()
	}
	if err != nil {
		return err
	}

	secret := pair.Secret()
	defer crypto.SecureErase(secret)

	encodedSecret, err := addresscodec.EncodeSecret(secret)
	if err != nil {
		return err
	}

	id := pair.AccountID()
	address := addresscodec.EncodeAccountID(id)
	publicKey := hex.EncodeToString(pair.PublicKey())

	if keygenJSON {
		out, err := json.MarshalIndent(map[string]string{
			"address":    address,
			"account_id": id.String(),
			"public_key": publicKey,
			"secret":     encodedSecret,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("Address:    %s\n", address)
	fmt.Printf("Account ID: %s\n", id)
	fmt.Printf("Public key: %s\n", publicKey)
	fmt.Printf("Secret:     %s\n", encodedSecret)
	return nil
}
