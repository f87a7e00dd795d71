package tlsinfo

import "crypto/tls"

type suiteInfo struct {
	cipher          CipherAlgorithm
	cipherBits      int
	hash            HashAlgorithm
	hashBits        int
	rsaKeyTransport bool
}

// suites covers every suite crypto/tls can negotiate.  AEAD suites
// report their PRF hash with zero strength.
var suites = map[uint16]suiteInfo{
	// TLS 1.3
	tls.TLS_AES_128_GCM_SHA256:       {CipherAES128, 128, HashSHA256, 0, false},
	tls.TLS_AES_256_GCM_SHA384:       {CipherAES256, 256, HashSHA384, 0, false},
	tls.TLS_CHACHA20_POLY1305_SHA256: {CipherChaCha20, 256, HashSHA256, 0, false},

	// ECDHE, AEAD
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256:         {CipherAES128, 128, HashSHA256, 0, false},
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256:       {CipherAES128, 128, HashSHA256, 0, false},
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384:         {CipherAES256, 256, HashSHA384, 0, false},
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384:       {CipherAES256, 256, HashSHA384, 0, false},
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256:   {CipherChaCha20, 256, HashSHA256, 0, false},
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256: {CipherChaCha20, 256, HashSHA256, 0, false},

	// ECDHE, CBC / stream
	tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA:      {CipherAES128, 128, HashSHA1, 160, false},
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA:    {CipherAES128, 128, HashSHA1, 160, false},
	tls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA:      {CipherAES256, 256, HashSHA1, 160, false},
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_CBC_SHA:    {CipherAES256, 256, HashSHA1, 160, false},
	tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA256:   {CipherAES128, 128, HashSHA256, 256, false},
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA256: {CipherAES128, 128, HashSHA256, 256, false},
	tls.TLS_ECDHE_RSA_WITH_3DES_EDE_CBC_SHA:     {Cipher3DES, 168, HashSHA1, 160, false},
	tls.TLS_ECDHE_RSA_WITH_RC4_128_SHA:          {CipherRC4, 128, HashSHA1, 160, false},
	tls.TLS_ECDHE_ECDSA_WITH_RC4_128_SHA:        {CipherRC4, 128, HashSHA1, 160, false},

	// RSA key transport
	tls.TLS_RSA_WITH_AES_128_GCM_SHA256: {CipherAES128, 128, HashSHA256, 0, true},
	tls.TLS_RSA_WITH_AES_256_GCM_SHA384: {CipherAES256, 256, HashSHA384, 0, true},
	tls.TLS_RSA_WITH_AES_128_CBC_SHA:    {CipherAES128, 128, HashSHA1, 160, true},
	tls.TLS_RSA_WITH_AES_256_CBC_SHA:    {CipherAES256, 256, HashSHA1, 160, true},
	tls.TLS_RSA_WITH_AES_128_CBC_SHA256: {CipherAES128, 128, HashSHA256, 256, true},
	tls.TLS_RSA_WITH_3DES_EDE_CBC_SHA:   {Cipher3DES, 168, HashSHA1, 160, true},
	tls.TLS_RSA_WITH_RC4_128_SHA:        {CipherRC4, 128, HashSHA1, 160, true},
}
