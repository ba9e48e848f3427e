// Package signer carrega certificados A1 (PKCS#12) e aplica a assinatura
// digital envelopada exigida pelo leiaute da NF-e.
package signer

// Algoritmos e namespaces da assinatura XML-DSig conforme o Manual de
// Orientação do Contribuinte. SHA-1 e RSA-SHA1 são os exigidos pelo leiaute.
const (
	NsXMLDSig = "http://www.w3.org/2000/09/xmldsig#"

	AlgC14N      = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	AlgRSASHA1   = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	AlgSHA1      = "http://www.w3.org/2000/09/xmldsig#sha1"
	AlgEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
)
