package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base32"
	"encoding/pem"
	"fmt"
	"io/ioutil"

	"github.com/spf13/cobra"
)

// commandGenKey is a local-dev convenience absent from the original Rust
// implementation's CLI: it produces the two pieces of key material authd's
// config expects an operator to already have (an issuer's RSA signing key
// and the process-wide intent-token wrapping secret) so a fresh deployment
// can be bootstrapped without reaching for openssl by hand.
func commandGenKey() *cobra.Command {
	var (
		privateKeyOut string
		intentOut     string
		bits          int
	)
	cmd := &cobra.Command{
		Use:   "genkey",
		Short: "Generate a fresh RSA signing key and intent-token wrapping secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if privateKeyOut != "" {
				key, err := rsa.GenerateKey(rand.Reader, bits)
				if err != nil {
					return fmt.Errorf("generating rsa key: %w", err)
				}
				der, err := x509.MarshalPKCS8PrivateKey(key)
				if err != nil {
					return fmt.Errorf("marshaling pkcs8 key: %w", err)
				}
				pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
				if err := ioutil.WriteFile(privateKeyOut, pemBytes, 0o600); err != nil {
					return fmt.Errorf("writing %s: %w", privateKeyOut, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote RSA private key to %s\n", privateKeyOut)
			}
			if intentOut != "" {
				secret, err := generateIntentSecret()
				if err != nil {
					return fmt.Errorf("generating intent secret: %w", err)
				}
				encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(secret[:])
				if err := ioutil.WriteFile(intentOut, []byte(encoded), 0o600); err != nil {
					return fmt.Errorf("writing %s: %w", intentOut, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote intent secret to %s\n", intentOut)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&privateKeyOut, "private-key-out", "", "path to write a freshly generated RSA private key (PKCS8 PEM)")
	flags.StringVar(&intentOut, "intent-secret-out", "", "path to write a freshly generated intent-token wrapping secret")
	flags.IntVar(&bits, "bits", 2048, "RSA key size")
	return cmd
}
