/*
Package digikoppeling implements the hybrid-envelope message processing
pipeline of the Dutch government Digikoppeling WUS interoperability profile.

# Overview

Digikoppeling WUS mandates a hybrid envelope: a SOAP 1.1 envelope carrying
WS-Addressing 1.0 and WS-Security header vocabularies that were specified
against SOAP 1.2. Standard request/response frameworks reject that
combination because they enforce version-header namespace coherence; this
module implements the combination directly as an explicit, ordered pipeline
of independently testable stages.

# Specifications Implemented

  - Digikoppeling Koppelvlakstandaard WUS 3.0 (profiles 2W-be, 2W-be-S, 2W-be-SE)
  - WS-Addressing 1.0: https://www.w3.org/TR/ws-addr-core/
  - WS-Security 1.1: https://docs.oasis-open.org/wss/v1.1/
  - XML Signature Syntax and Processing: https://www.w3.org/TR/xmldsig-core1/
  - XML Encryption Syntax and Processing: https://www.w3.org/TR/xmlenc-core1/

# Package Structure

	github.com/grauwen/digikoppeling-wus-cxf/pkg/envelope    - envelope classification and data model
	github.com/grauwen/digikoppeling-wus-cxf/pkg/profile     - static profile registry
	github.com/grauwen/digikoppeling-wus-cxf/pkg/policy      - hybrid header admission
	github.com/grauwen/digikoppeling-wus-cxf/pkg/addressing  - WS-Addressing header handling
	github.com/grauwen/digikoppeling-wus-cxf/pkg/wssec       - WS-Security signing and encryption
	github.com/grauwen/digikoppeling-wus-cxf/pkg/correlation - asynchronous reply correlation
	github.com/grauwen/digikoppeling-wus-cxf/pkg/pipeline    - per-exchange orchestration
	github.com/grauwen/digikoppeling-wus-cxf/pkg/fault       - fault taxonomy
	github.com/grauwen/digikoppeling-wus-cxf/pkg/transport   - mutual-TLS HTTPS transport

Server-side concerns (configuration, key stores, the exchange journal) live
under internal/.
*/
package digikoppeling
