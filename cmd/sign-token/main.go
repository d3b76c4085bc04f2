// sign-token produces a signed owner session token from an Ed25519 private
// key. The token goes into OWNER_TOKEN; the matching public key goes into
// ED25519_PUBKEY on the server side.
package main

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/dmelim/folio/internal/identity"
	"github.com/dmelim/folio/internal/model"
)

func loadPrivateKey(filename string) (ed25519.PrivateKey, error) {
	privKeyBytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(privKeyBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}
	privKey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	edPriv, ok := privKey.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an Ed25519 private key")
	}
	return edPriv, nil
}

func main() {
	keyFile := flag.String("key", "privkey.pem", "path to the Ed25519 private key (PKCS#8 PEM)")
	owner := flag.String("identity", "owner", "identity to embed in the token")
	flag.Parse()

	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	outputStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212"))

	privKey, err := loadPrivateKey(*keyFile)
	if err != nil {
		fmt.Println("Error loading private key:", err)
		os.Exit(1)
	}

	token := identity.SignToken(privKey, model.Identity(*owner))

	fmt.Println(labelStyle.Render("Session token for " + *owner + ":"))
	fmt.Println(outputStyle.Render(token))
}
