package sii

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgsii "github.com/tu-usuario/retail-dte/pkg/sii"
)

// ── Endpoints SII ──────────────────────────────────────────────────────────────

const (
	uploadURLTest = "https://maullin.sii.cl/cgi_dte/UPL/DTEUpload"
	uploadURLProd = "https://palena.sii.cl/cgi_dte/UPL/DTEUpload"

	statusURLTest = "https://maullin.sii.cl/DTEWS/QueryEstUp.jws"
	statusURLProd = "https://palena.sii.cl/DTEWS/QueryEstUp.jws"

	soapNS = "http://schemas.xmlsoap.org/soap/envelope/"
)

// ── Puerto (interfaz) ──────────────────────────────────────────────────────────

// SubmitResult resultado de una interacción con el SII.
// Estado vacío significa "sin respuesta definitiva todavía" (el envío quedó
// en cola); el llamador debe reconciliar más tarde con el TrackID.
type SubmitResult struct {
	TrackID string // identificador del envío asignado por el SII
	Estado  string // EPR (aceptado), RPR (reparo), RCH (rechazado) o vacío
	Glosa   string // detalle textual del SII (vacío si no hay)
}

// Submitter define el puerto de salida hacia el SII. La implementación
// concreta usa el WS del SII; para tests se inyecta un fake.
type Submitter interface {
	// Submit entrega el DTE firmado. env debe ser "test" o "prod".
	// Un error de red o timeout NO garantiza que el SII no haya recibido el
	// envío: el llamador debe tratar ese caso como envío pendiente.
	Submit(ctx context.Context, signedXML []byte, filename, env string) (*SubmitResult, error)

	// QueryStatus consulta el estado de un envío previo por su track id.
	// Nunca re-envía el documento.
	QueryStatus(ctx context.Context, trackID, env string) (*SubmitResult, error)
}

// ── Implementación ─────────────────────────────────────────────────────────────

// SOAPClient implementa Submitter contra el WS del SII.
// Usa net/http de la stdlib; no requiere librerías de terceros.
type SOAPClient struct {
	httpClient *http.Client

	// overrides de endpoint para tests; vacíos en operación normal
	uploadURL string
	statusURL string
}

// NewSOAPClient construye el cliente con un timeout de red generoso (60 s):
// el WS del SII puede tardar varios segundos en responder un upload.
func NewSOAPClient() *SOAPClient {
	return &SOAPClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// ── Estructuras SOAP ──────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName xml.Name `xml:"s:Envelope"`
	XmlnsS  string   `xml:"xmlns:s,attr"`
	Body    soapBody `xml:"s:Body"`
}

type soapBody struct {
	Content interface{}
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "s:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

type uploadBody struct {
	XMLName     xml.Name `xml:"sendDTE"`
	FileName    string   `xml:"fileName"`
	ContentFile string   `xml:"contentFile"` // DTE en Base64
}

type queryEstUpBody struct {
	XMLName xml.Name `xml:"getEstUp"`
	TrackID string   `xml:"trackId"`
}

type soapResponseEnvelope struct {
	Body struct {
		Upload *struct {
			TrackID string `xml:"trackId"`
			Estado  string `xml:"estado"`
			Glosa   string `xml:"glosa"`
		} `xml:"sendDTEResponse"`
		Status *struct {
			Estado string `xml:"estado"`
			Glosa  string `xml:"glosa"`
		} `xml:"getEstUpResponse"`
		Fault *struct {
			FaultCode   string `xml:"faultcode"`
			FaultString string `xml:"faultstring"`
		} `xml:"Fault"`
	} `xml:"Body"`
}

// ── Operaciones ───────────────────────────────────────────────────────────────

// Submit entrega el DTE firmado al SII y devuelve el track id asignado.
func (c *SOAPClient) Submit(ctx context.Context, signedXML []byte, filename, env string) (*SubmitResult, error) {
	url := c.uploadURL
	if url == "" {
		var err error
		if url, err = endpointFor(env, uploadURLTest, uploadURLProd); err != nil {
			return nil, err
		}
	}
	resp, err := c.call(ctx, url, uploadBody{
		FileName:    filename,
		ContentFile: base64.StdEncoding.EncodeToString(signedXML),
	})
	if err != nil {
		return nil, err
	}
	if resp.Body.Upload == nil {
		return nil, fmt.Errorf("sii: respuesta de upload sin cuerpo reconocible")
	}
	return &SubmitResult{
		TrackID: strings.TrimSpace(resp.Body.Upload.TrackID),
		Estado:  normalizeEstado(resp.Body.Upload.Estado),
		Glosa:   strings.TrimSpace(resp.Body.Upload.Glosa),
	}, nil
}

// QueryStatus consulta el estado del envío identificado por trackID.
func (c *SOAPClient) QueryStatus(ctx context.Context, trackID, env string) (*SubmitResult, error) {
	if strings.TrimSpace(trackID) == "" {
		return nil, fmt.Errorf("sii: track id vacío")
	}
	url := c.statusURL
	if url == "" {
		var err error
		if url, err = endpointFor(env, statusURLTest, statusURLProd); err != nil {
			return nil, err
		}
	}
	resp, err := c.call(ctx, url, queryEstUpBody{TrackID: trackID})
	if err != nil {
		return nil, err
	}
	if resp.Body.Status == nil {
		return nil, fmt.Errorf("sii: respuesta de estado sin cuerpo reconocible")
	}
	return &SubmitResult{
		TrackID: trackID,
		Estado:  normalizeEstado(resp.Body.Status.Estado),
		Glosa:   strings.TrimSpace(resp.Body.Status.Glosa),
	}, nil
}

func (c *SOAPClient) call(ctx context.Context, url string, body interface{}) (*soapResponseEnvelope, error) {
	envelope := soapEnvelope{
		XmlnsS: soapNS,
		Body:   soapBody{Content: body},
	}
	payload, err := xml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("sii: armar envelope SOAP: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url,
		bytes.NewReader(append([]byte(xml.Header), payload...)))
	if err != nil {
		return nil, fmt.Errorf("sii: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sii: llamada al WS: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("sii: leer respuesta: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sii: WS respondió HTTP %d: %s", httpResp.StatusCode, truncate(string(raw), 200))
	}

	var parsed soapResponseEnvelope
	if err := xml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("sii: parsear respuesta SOAP: %w", err)
	}
	if parsed.Body.Fault != nil {
		return nil, fmt.Errorf("sii: fault SOAP %s: %s",
			parsed.Body.Fault.FaultCode, parsed.Body.Fault.FaultString)
	}
	return &parsed, nil
}

func endpointFor(env, testURL, prodURL string) (string, error) {
	switch env {
	case pkgsii.AmbienteCertificacion:
		return testURL, nil
	case pkgsii.AmbienteProduccion:
		return prodURL, nil
	default:
		return "", fmt.Errorf("sii: ambiente desconocido %q (usar test|prod)", env)
	}
}

// normalizeEstado deja pasar solo los estados terminales conocidos; cualquier
// otro valor ("-11" en cola, etc.) se reporta vacío para que el llamador
// reconcilie más tarde.
func normalizeEstado(estado string) string {
	switch strings.TrimSpace(strings.ToUpper(estado)) {
	case pkgsii.EstadoAceptado:
		return pkgsii.EstadoAceptado
	case pkgsii.EstadoReparo:
		return pkgsii.EstadoReparo
	case pkgsii.EstadoRechazado:
		return pkgsii.EstadoRechazado
	default:
		return ""
	}
}
