package sso

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"

	saml2 "github.com/russellhaering/gosaml2"
	dsig "github.com/russellhaering/goxmldsig"
)

func newSAMLConn(cfg *Config, baseURL, name string) (*saml2.SAMLServiceProvider, error) {
	certBlock, _ := pem.Decode([]byte(cfg.Certificate))
	if certBlock == nil {
		return nil, fmt.Errorf("idp certificate is not valid PEM")
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse idp certificate: %w", err)
	}
	certStore := &dsig.MemoryX509CertificateStore{Roots: []*x509.Certificate{cert}}

	var keyStore dsig.X509KeyStore
	if cfg.PrivateKey != "" {
		keyStore, err = parseKeyStore(cfg.PrivateKey, cfg.Certificate)
		if err != nil {
			return nil, err
		}
	}

	sp := &saml2.SAMLServiceProvider{
		IdentityProviderSSOURL:      cfg.SSOURL,
		IdentityProviderIssuer:      cfg.EntityID,
		ServiceProviderIssuer:       baseURL + "/sso/metadata",
		AssertionConsumerServiceURL: fmt.Sprintf("%s/auth/sso/%s/callback", baseURL, name),
		AudienceURI:                 baseURL,
		SignAuthnRequests:           cfg.SignRequests,
		IDPCertificateStore:         certStore,
		SPKeyStore:                  keyStore,
	}
	if cfg.NameIDFormat != "" {
		sp.NameIdFormat = cfg.NameIDFormat
	}
	return sp, nil
}

func parseKeyStore(privateKey, certificate string) (dsig.X509KeyStore, error) {
	keyBlock, _ := pem.Decode([]byte(privateKey))
	if keyBlock == nil {
		return nil, fmt.Errorf("sp private key is not valid PEM")
	}
	key, err := x509.ParsePKCS1PrivateKey(keyBlock.Bytes)
	if err != nil {
		pkcs8, err := x509.ParsePKCS8PrivateKey(keyBlock.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sp private key: %w", err)
		}
		rsaKey, ok := pkcs8.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("sp private key is not RSA")
		}
		key = rsaKey
	}
	return &dsig.TLSCertKeyStore{
		PrivateKey:  key,
		Certificate: [][]byte{[]byte(certificate)},
	}, nil
}

// completeSAML validates a posted SAMLResponse and maps assertion attributes
// onto an Identity
func completeSAML(sp *saml2.SAMLServiceProvider, encoded string, mapping AttributeMap) (*Identity, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode SAMLResponse: %w", err)
	}

	info, err := sp.RetrieveAssertionInfo(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to validate assertion: %w", err)
	}
	if info.WarningInfo != nil {
		if info.WarningInfo.InvalidTime {
			return nil, fmt.Errorf("assertion is outside its validity window")
		}
		if info.WarningInfo.NotInAudience {
			return nil, fmt.Errorf("assertion audience does not match")
		}
	}

	ident := &Identity{Attributes: make(map[string]string)}
	for _, attr := range info.Values {
		if len(attr.Values) == 0 {
			continue
		}
		ident.Attributes[attr.Name] = attr.Values[0].Value

		switch attr.Name {
		case mapping.UserID:
			ident.ExternalID = attr.Values[0].Value
		case mapping.Email:
			ident.Email = attr.Values[0].Value
		case mapping.FirstName:
			ident.FirstName = attr.Values[0].Value
		case mapping.LastName:
			ident.LastName = attr.Values[0].Value
		case mapping.Groups:
			for _, v := range attr.Values {
				ident.Groups = append(ident.Groups, v.Value)
			}
		}
	}

	if ident.ExternalID == "" {
		ident.ExternalID = info.NameID
	}
	if ident.ExternalID == "" {
		return nil, fmt.Errorf("assertion carries no subject")
	}
	if ident.Email == "" {
		return nil, fmt.Errorf("assertion carries no email")
	}

	return ident, nil
}
