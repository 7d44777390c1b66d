package sii

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgsii "github.com/tu-usuario/retail-dte/pkg/sii"
)

func soapTestClient(url string) *SOAPClient {
	c := NewSOAPClient()
	c.uploadURL = url
	c.statusURL = url
	return c
}

func TestSOAPClient_Submit(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		io.WriteString(w, `<?xml version="1.0"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/">
  <soapenv:Body>
    <sendDTEResponse>
      <trackId> 7812345 </trackId>
      <estado>-11</estado>
      <glosa>Envio en cola de procesamiento</glosa>
    </sendDTEResponse>
  </soapenv:Body>
</soapenv:Envelope>`)
	}))
	defer srv.Close()

	signed := []byte(`<DTE version="1.0"><Documento ID="F10T39"/></DTE>`)
	res, err := soapTestClient(srv.URL).Submit(context.Background(), signed, "DTE_76543210_T39F10.xml", pkgsii.AmbienteCertificacion)
	require.NoError(t, err)

	assert.Equal(t, "7812345", res.TrackID)
	assert.Empty(t, res.Estado, "un estado en cola no es veredicto terminal")
	assert.Equal(t, "Envio en cola de procesamiento", res.Glosa)

	// El DTE viaja en Base64 dentro del envelope.
	assert.Contains(t, gotBody, "<fileName>DTE_76543210_T39F10.xml</fileName>")
	assert.Contains(t, gotBody, base64.StdEncoding.EncodeToString(signed))
}

func TestSOAPClient_Submit_EstadoTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>
<sendDTEResponse><trackId>99</trackId><estado>epr</estado><glosa>DTE Recibido</glosa></sendDTEResponse>
</s:Body></s:Envelope>`)
	}))
	defer srv.Close()

	res, err := soapTestClient(srv.URL).Submit(context.Background(), []byte("<DTE/>"), "f.xml", pkgsii.AmbienteCertificacion)
	require.NoError(t, err)
	assert.Equal(t, pkgsii.EstadoAceptado, res.Estado, "el estado se normaliza a mayúsculas")
}

func TestSOAPClient_QueryStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(raw), "<trackId>7812345</trackId>")
		io.WriteString(w, `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>
<getEstUpResponse><estado>RCH</estado><glosa>Error de firma</glosa></getEstUpResponse>
</s:Body></s:Envelope>`)
	}))
	defer srv.Close()

	res, err := soapTestClient(srv.URL).QueryStatus(context.Background(), "7812345", pkgsii.AmbienteCertificacion)
	require.NoError(t, err)
	assert.Equal(t, "7812345", res.TrackID)
	assert.Equal(t, pkgsii.EstadoRechazado, res.Estado)
	assert.Equal(t, "Error de firma", res.Glosa)
}

func TestSOAPClient_QueryStatus_TrackIDVacio(t *testing.T) {
	_, err := NewSOAPClient().QueryStatus(context.Background(), "  ", pkgsii.AmbienteCertificacion)
	assert.Error(t, err)
}

func TestSOAPClient_Fault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>
<s:Fault><faultcode>s:Server</faultcode><faultstring>Servicio no disponible</faultstring></s:Fault>
</s:Body></s:Envelope>`)
	}))
	defer srv.Close()

	_, err := soapTestClient(srv.URL).Submit(context.Background(), []byte("<DTE/>"), "f.xml", pkgsii.AmbienteCertificacion)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Servicio no disponible")
}

func TestSOAPClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "mantención programada", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := soapTestClient(srv.URL).Submit(context.Background(), []byte("<DTE/>"), "f.xml", pkgsii.AmbienteCertificacion)
	assert.Error(t, err)
}

func TestSOAPClient_AmbienteDesconocido(t *testing.T) {
	_, err := NewSOAPClient().Submit(context.Background(), []byte("<DTE/>"), "f.xml", "staging")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiente desconocido")
}

func TestEndpointFor(t *testing.T) {
	url, err := endpointFor(pkgsii.AmbienteCertificacion, uploadURLTest, uploadURLProd)
	require.NoError(t, err)
	assert.Contains(t, url, "maullin.sii.cl")

	url, err = endpointFor(pkgsii.AmbienteProduccion, uploadURLTest, uploadURLProd)
	require.NoError(t, err)
	assert.Contains(t, url, "palena.sii.cl")
}

func TestNormalizeEstado(t *testing.T) {
	assert.Equal(t, "EPR", normalizeEstado(" epr "))
	assert.Equal(t, "RPR", normalizeEstado("RPR"))
	assert.Equal(t, "RCH", normalizeEstado("rch"))
	assert.Empty(t, normalizeEstado("-11"))
	assert.Empty(t, normalizeEstado(""))
	assert.Empty(t, normalizeEstado("SOK"))
}
