package main

import (
	"github.com/bogdanfinn/fhttp/http2"
	"github.com/bogdanfinn/tls-client/profiles"
	tls "github.com/bogdanfinn/utls"
)

const (
	Chrome143UserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36"
	Chrome143SecChUa         = `"Google Chrome";v="143", "Chromium";v="143", "Not A(Brand";v="24"`
	Chrome143FullVersionList = `"Google Chrome";v="143.0.0.0", "Chromium";v="143.0.0.0", "Not A(Brand";v="24.0.0.0"`
)

// chrome143Ciphers is the cipher list Chrome 143 offers, GREASE first.
var chrome143Ciphers = []uint16{
	tls.GREASE_PLACEHOLDER,
	tls.TLS_AES_128_GCM_SHA256,
	tls.TLS_AES_256_GCM_SHA384,
	tls.TLS_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
	tls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
	tls.TLS_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_RSA_WITH_AES_128_CBC_SHA,
	tls.TLS_RSA_WITH_AES_256_CBC_SHA,
}

// HardenedCiphers is the restricted suite set for the hardened transport:
// TLS 1.3 AEADs plus forward-secret ECDHE AES-GCM and ChaCha20 for TLS 1.2.
// No CBC, no static RSA key exchange, no 3DES.
var HardenedCiphers = []uint16{
	tls.TLS_AES_128_GCM_SHA256,
	tls.TLS_AES_256_GCM_SHA384,
	tls.TLS_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
}

// HardenedMinVersion is the lowest protocol version the hardened hello offers.
const HardenedMinVersion = tls.VersionTLS12

// Chrome143Profile is the browser profile for Chrome 143.
var Chrome143Profile = &BrowserProfile{
	UserAgent:       Chrome143UserAgent,
	SecChUa:         Chrome143SecChUa,
	FullVersionList: Chrome143FullVersionList,
	Platform:        `"Windows"`,
	Mobile:          "?0",
	AcceptLanguage:  "en-US,en;q=0.9",
}

// HardenedProfile keeps Chrome 143 headers but negotiates over the
// restricted cipher set.
var HardenedProfile = &BrowserProfile{
	UserAgent:       Chrome143UserAgent,
	SecChUa:         Chrome143SecChUa,
	FullVersionList: Chrome143FullVersionList,
	Platform:        `"Windows"`,
	Mobile:          "?0",
	AcceptLanguage:  "en-US,en;q=0.9",
}

// chromeHelloSpec is Chrome 143's ClientHello with a caller-chosen cipher
// list and supported-versions range.
func chromeHelloSpec(ciphers []uint16, versions []uint16) tls.ClientHelloSpec {
	return tls.ClientHelloSpec{
		CipherSuites:       append([]uint16(nil), ciphers...),
		CompressionMethods: []byte{tls.CompressionNone},
		Extensions: []tls.TLSExtension{
			&tls.UtlsGREASEExtension{},
			&tls.PSKKeyExchangeModesExtension{Modes: []uint8{tls.PskModeDHE}},
			&tls.SCTExtension{},
			&tls.KeyShareExtension{KeyShares: []tls.KeyShare{
				{Group: tls.CurveID(tls.GREASE_PLACEHOLDER), Data: []byte{0}},
				{Group: tls.X25519MLKEM768},
				{Group: tls.X25519},
			}},
			&tls.StatusRequestExtension{},
			&tls.SupportedCurvesExtension{Curves: []tls.CurveID{
				tls.GREASE_PLACEHOLDER,
				tls.X25519MLKEM768,
				tls.X25519,
				tls.CurveP256,
				tls.CurveP384,
			}},
			&tls.SessionTicketExtension{},
			tls.BoringGREASEECH(),
			&tls.SupportedPointsExtension{SupportedPoints: []byte{tls.PointFormatUncompressed}},
			&tls.SupportedVersionsExtension{Versions: append([]uint16{tls.GREASE_PLACEHOLDER}, versions...)},
			&tls.SNIExtension{},
			&tls.SignatureAlgorithmsExtension{SupportedSignatureAlgorithms: []tls.SignatureScheme{
				tls.ECDSAWithP256AndSHA256,
				tls.PSSWithSHA256,
				tls.PKCS1WithSHA256,
				tls.ECDSAWithP384AndSHA384,
				tls.PSSWithSHA384,
				tls.PKCS1WithSHA384,
				tls.PSSWithSHA512,
				tls.PKCS1WithSHA512,
			}},
			&tls.ApplicationSettingsExtensionNew{SupportedProtocols: []string{"h2"}},
			&tls.UtlsCompressCertExtension{Algorithms: []tls.CertCompressionAlgo{tls.CertCompressionBrotli}},
			&tls.ExtendedMasterSecretExtension{},
			&tls.ALPNExtension{AlpnProtocols: []string{"h2", "http/1.1"}},
			&tls.RenegotiationInfoExtension{Renegotiation: tls.RenegotiateOnceAsClient},
			&tls.UtlsGREASEExtension{},
			&tls.UtlsPreSharedKeyExtension{},
		},
	}
}

// newChromeClientProfile wraps a hello spec with Chrome's HTTP/2 settings.
func newChromeClientProfile(version string, spec func() tls.ClientHelloSpec) profiles.ClientProfile {
	return profiles.NewClientProfile(
		tls.ClientHelloID{
			Client:               "Chrome",
			RandomExtensionOrder: true,
			Version:              version,
			SpecFactory: func() (tls.ClientHelloSpec, error) {
				return spec(), nil
			},
		},
		map[http2.SettingID]uint32{
			http2.SettingHeaderTableSize:   65536,
			http2.SettingEnablePush:        0,
			http2.SettingInitialWindowSize: 6291456,
			http2.SettingMaxHeaderListSize: 262144,
		},
		[]http2.SettingID{
			http2.SettingHeaderTableSize,
			http2.SettingEnablePush,
			http2.SettingInitialWindowSize,
			http2.SettingMaxHeaderListSize,
		},
		PseudoHeaderOrder,
		15663105,
		nil,
		nil,
	)
}

func hardenedHelloSpec() tls.ClientHelloSpec {
	return chromeHelloSpec(append([]uint16{tls.GREASE_PLACEHOLDER}, HardenedCiphers...), []uint16{tls.VersionTLS13, HardenedMinVersion})
}

var (
	chrome143ClientProfile = newChromeClientProfile("143", func() tls.ClientHelloSpec {
		return chromeHelloSpec(chrome143Ciphers, []uint16{tls.VersionTLS13, tls.VersionTLS12})
	})
	hardenedClientProfile = newChromeClientProfile("143-hardened", hardenedHelloSpec)
)

func init() {
	Chrome143Profile.TLSProfile = chrome143ClientProfile
	HardenedProfile.TLSProfile = hardenedClientProfile
}
