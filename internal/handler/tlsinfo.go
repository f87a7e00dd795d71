package handler

import (
	"crypto/x509"
	"encoding/json"
	"time"

	"httpsd/internal/dispatch"
)

// TLSInfo reports the connection's negotiated TLS parameters as JSON.
// With ?cert=1 it first fetches the client certificate, renegotiating
// if the connection allows it.
type TLSInfo struct{}

// Report is the JSON body written by TLSInfo.
type Report struct {
	Protocol            string      `json:"protocol"`
	Cipher              string      `json:"cipher"`
	CipherStrength      int         `json:"cipher_strength"`
	Hash                string      `json:"hash"`
	HashStrength        int         `json:"hash_strength"`
	KeyExchange         string      `json:"key_exchange"`
	KeyExchangeStrength int         `json:"key_exchange_strength"`
	ServerName          string      `json:"server_name,omitempty"`
	ALPN                string      `json:"alpn,omitempty"`
	Resumed             bool        `json:"resumed"`
	ClientCertState     string      `json:"client_cert_state"`
	ClientCert          *CertReport `json:"client_cert,omitempty"`
}

// CertReport summarises a client certificate.
type CertReport struct {
	Subject  string    `json:"subject"`
	Issuer   string    `json:"issuer"`
	Serial   string    `json:"serial"`
	NotAfter time.Time `json:"not_after"`
}

func (TLSInfo) Handle(rc *dispatch.RequestContext) error {
	f := rc.Features
	cert := f.ClientCertificate()
	if rc.Request.URL.Query().Get("cert") == "1" {
		var err error
		if cert, err = f.GetClientCertificate(rc.Context()); err != nil {
			return err
		}
	}

	hs := f.Handshake()
	report := Report{
		Protocol:            hs.Protocol.String(),
		Cipher:              hs.CipherAlgorithm.String(),
		CipherStrength:      hs.CipherStrength,
		Hash:                hs.HashAlgorithm.String(),
		HashStrength:        hs.HashStrength,
		KeyExchange:         hs.KeyExchangeAlgorithm.String(),
		KeyExchangeStrength: hs.KeyExchangeStrength,
		ServerName:          hs.ServerName,
		ALPN:                hs.NegotiatedProtocol,
		Resumed:             hs.DidResume,
		ClientCertState:     f.ClientCertificateState().String(),
		ClientCert:          certReport(cert),
	}

	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	body = append(body, '\n')
	rc.Response.Header().Set("Content-Type", "application/json")
	rc.Response.SetContentLength(int64(len(body)))
	_, err = rc.Response.Write(body)
	return err
}

func certReport(c *x509.Certificate) *CertReport {
	if c == nil {
		return nil
	}
	return &CertReport{
		Subject:  c.Subject.String(),
		Issuer:   c.Issuer.String(),
		Serial:   c.SerialNumber.String(),
		NotAfter: c.NotAfter.UTC(),
	}
}
