// Package sii: interfaz para firma digital de documentos XML (XML-DSig, SII).

package sii

import "crypto/tls"

// Signer firma el XML de un DTE y devuelve el XML con la firma inyectada
// como último hijo del elemento DTE.
type Signer interface {
	// Sign toma el XML del DTE (con TED, sin firma) y el certificado con
	// llave privada, y retorna el XML con el nodo ds:Signature agregado.
	// Debe rechazar certificados vencidos antes de producir firma alguna.
	Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error)
}
