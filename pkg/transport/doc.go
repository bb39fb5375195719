/*
Package transport implements the HTTPS transport layer for Digikoppeling WUS.

WUS messages travel as SOAP 1.1 over two-way TLS. The package provides a
client that posts serialized envelopes with the mandatory SOAPAction header,
and a server that requires client certificates and hands incoming envelopes
to a MessageHandler.

# TLS Configuration

The package recommends TLS 1.3 with fallback to TLS 1.2:

	config := transport.DefaultHTTPSConfig()
	// MinTLSVersion: TLS 1.2
	// MaxTLSVersion: TLS 1.3
	// ClientAuth:    tls.RequireAndVerifyClientCert

For TLS 1.2, the following cipher suites are recommended:
  - TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384
  - TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256
  - TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384
  - TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256

# Client Usage

	client := transport.NewHTTPSClient(&transport.HTTPSConfig{
	    MinTLSVersion: transport.TLS12,
	    Certificates:  []tls.Certificate{clientCert},
	    RootCAs:       certPool,
	})

	response, err := client.Send(ctx, "https://receiver.example.nl/wus", wire, action)

The action argument mirrors the wsa:Action of the envelope and is sent
quoted in the SOAPAction header as SOAP 1.1 requires.

# Server Usage

	server := transport.NewHTTPSServer(":8443", &transport.HTTPSConfig{
	    Certificates: []tls.Certificate{serverCert},
	    ClientCAs:    clientCAPool,
	    ClientAuth:   tls.RequireAndVerifyClientCert,
	}, handler)

Requests are accepted on the /wus endpoint. Responses are written with
Content-Type "text/xml; charset=utf-8".
*/
package transport
