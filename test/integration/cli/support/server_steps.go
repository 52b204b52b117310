package support

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/MeKo-Tech/gobar/internal/barcode"
	"github.com/MeKo-Tech/gobar/internal/generator"
	"github.com/MeKo-Tech/gobar/internal/server"
	"github.com/MeKo-Tech/gobar/internal/testutil"
	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"
	"github.com/gorilla/websocket"
)

const wsMessageTimeout = 10 * time.Second

// theBarcodeServerIsRunning starts the real server behind httptest.
func (testCtx *TestContext) theBarcodeServerIsRunning() error {
	return testCtx.startServer(server.RateLimitConfig{})
}

// theBarcodeServerIsRunningWithARateLimitOf starts the server with a
// per-minute request limit.
func (testCtx *TestContext) theBarcodeServerIsRunningWithARateLimitOf(perMinute int) error {
	return testCtx.startServer(server.RateLimitConfig{Enabled: true, RequestsPerMinute: perMinute})
}

func (testCtx *TestContext) startServer(rl server.RateLimitConfig) error {
	if err := testCtx.StopServer(); err != nil {
		return err
	}

	gen, err := generator.New(generator.Config{
		Encoder:   barcode.EncoderZXing,
		Workers:   2,
		QueueSize: 8,
	})
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}
	srv, err := server.NewServer(server.Config{
		DefaultMode: barcode.ModeBase64,
		Version:     "test",
		TimeoutSec:  10,
		RateLimit:   rl,
	}, gen)
	if err != nil {
		_ = gen.Close()
		return err
	}

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	testCtx.Server = srv
	testCtx.HTTPServer = httptest.NewServer(mux)
	return nil
}

// StopServer closes the WebSocket connection and the test server.
func (testCtx *TestContext) StopServer() error {
	if testCtx.WSConn != nil {
		_ = testCtx.WSConn.Close()
		testCtx.WSConn = nil
	}
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
		testCtx.HTTPServer = nil
	}
	if testCtx.Server != nil {
		err := testCtx.Server.Close()
		testCtx.Server = nil
		return err
	}
	return nil
}

func (testCtx *TestContext) serverURL() (string, error) {
	if testCtx.HTTPServer == nil {
		return "", fmt.Errorf("server is not running")
	}
	return testCtx.HTTPServer.URL, nil
}

func (testCtx *TestContext) iSendAGETRequestTo(path string) error {
	base, err := testCtx.serverURL()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, base+path, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

func (testCtx *TestContext) iPOSTJSONTo(path string, body *godog.DocString) error {
	base, err := testCtx.serverURL()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, base+path,
		strings.NewReader(body.Content))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return testCtx.do(req)
}

// iUploadABarcodeImageFor generates a PNG barcode and posts it to /decode.
func (testCtx *TestContext) iUploadABarcodeImageFor(text string) error {
	gen, err := generator.New(generator.Config{Encoder: barcode.EncoderZXing, Workers: 1, QueueSize: 1})
	if err != nil {
		return err
	}
	defer func() { _ = gen.Close() }()

	out, err := gen.Generate(context.Background(), barcode.Request{Text: text, Mode: barcode.ModeImage})
	if err != nil {
		return err
	}
	return testCtx.uploadImage(out.Image)
}

func (testCtx *TestContext) iUploadABlankImage() error {
	return testCtx.uploadImage(testutil.CreateTestImage(barcode.Width, barcode.Height, color.White))
}

func (testCtx *TestContext) uploadImage(img image.Image) error {
	base, err := testCtx.serverURL()
	if err != nil {
		return err
	}

	var png bytes.Buffer
	if err := imaging.Encode(&png, img, imaging.PNG); err != nil {
		return err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", "upload.png")
	if err != nil {
		return err
	}
	if _, err := part.Write(png.Bytes()); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, base+"/decode", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return testCtx.do(req)
}

func (testCtx *TestContext) do(req *http.Request) error {
	resp, err := testCtx.HTTPServer.Client().Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPBody = body
	testCtx.LastHTTPHeaders = make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (testCtx *TestContext) theResponseStatusShouldBe(expected int) error {
	if testCtx.LastHTTPStatusCode != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, testCtx.LastHTTPStatusCode, testCtx.LastHTTPBody)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, expected string) error {
	if got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]; got != expected {
		return fmt.Errorf("header %s is %q, want %q", name, got, expected)
	}
	return nil
}

// theResponseFieldShouldBe compares a top-level JSON field by its printed value.
func (testCtx *TestContext) theResponseFieldShouldBe(field, expected string) error {
	var body map[string]any
	if err := json.Unmarshal(testCtx.LastHTTPBody, &body); err != nil {
		return fmt.Errorf("response is not a JSON object: %w", err)
	}
	v, ok := body[field]
	if !ok {
		return fmt.Errorf("response has no field %q: %s", field, testCtx.LastHTTPBody)
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("field %q is %q, want %q", field, got, expected)
	}
	return nil
}

// theResponseShouldBeABarcodeFor scans the response: raw image bodies
// directly, JSON bodies through their base64 "data" field.
func (testCtx *TestContext) theResponseShouldBeABarcodeFor(text string) error {
	data := testCtx.LastHTTPBody
	if strings.HasPrefix(testCtx.LastHTTPHeaders["Content-Type"], "application/json") {
		var resp server.BarcodeResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return err
		}
		decoded, err := base64.StdEncoding.DecodeString(resp.Data)
		if err != nil {
			return fmt.Errorf("data is not base64: %w", err)
		}
		data = decoded
	}
	return checkBarcode(data, text)
}

func (testCtx *TestContext) theDecodedTextShouldBe(expected string) error {
	var resp server.DecodeResponse
	if err := json.Unmarshal(testCtx.LastHTTPBody, &resp); err != nil {
		return err
	}
	if len(resp.Results) == 0 {
		return fmt.Errorf("no symbols decoded: %s", testCtx.LastHTTPBody)
	}
	if resp.Results[0].Text != expected {
		return fmt.Errorf("decoded %q, want %q", resp.Results[0].Text, expected)
	}
	return nil
}

func (testCtx *TestContext) iOpenAWebSocketConnection() error {
	base, err := testCtx.serverURL()
	if err != nil {
		return err
	}
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(base, "http")+"/ws", nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to dial websocket: %w", err)
	}
	testCtx.WSConn = conn
	testCtx.WSMessages = nil
	return nil
}

func (testCtx *TestContext) iSendTheWebSocketMessage(msg *godog.DocString) error {
	if testCtx.WSConn == nil {
		return fmt.Errorf("no websocket connection")
	}
	return testCtx.WSConn.WriteMessage(websocket.TextMessage, []byte(msg.Content))
}

// iShouldReceiveWebSocketMessages reads messages until it has seen the
// comma-separated types in order.
func (testCtx *TestContext) iShouldReceiveWebSocketMessages(types string) error {
	if testCtx.WSConn == nil {
		return fmt.Errorf("no websocket connection")
	}
	var want []string
	for _, t := range strings.Split(types, ",") {
		want = append(want, strings.TrimSpace(t))
	}

	_ = testCtx.WSConn.SetReadDeadline(time.Now().Add(wsMessageTimeout))
	var got []string
	for len(got) < len(want) {
		var msg server.WebSocketMessage
		if err := testCtx.WSConn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("after %v: %w", got, err)
		}
		testCtx.WSMessages = append(testCtx.WSMessages, msg)
		got = append(got, msg.Type)
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("received %v, want %v", got, want)
		}
	}
	return nil
}

func (testCtx *TestContext) theWebSocketResultShouldBeABarcodeFor(text string) error {
	for _, msg := range testCtx.WSMessages {
		if msg.Type != "success" || msg.Result == nil {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(msg.Result.Data)
		if err != nil {
			return err
		}
		return checkBarcode(data, text)
	}
	return fmt.Errorf("no success message among %d received", len(testCtx.WSMessages))
}

func (testCtx *TestContext) theWebSocketErrorTypeShouldBe(expected string) error {
	for _, msg := range testCtx.WSMessages {
		if msg.ErrorType != "" {
			if msg.ErrorType != expected {
				return fmt.Errorf("error_type is %q, want %q", msg.ErrorType, expected)
			}
			return nil
		}
	}
	return fmt.Errorf("no message carried an error_type")
}

// RegisterServerSteps registers HTTP and WebSocket steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the barcode server is running$`, testCtx.theBarcodeServerIsRunning)
	sc.Step(`^the barcode server is running with a rate limit of (\d+) requests per minute$`,
		testCtx.theBarcodeServerIsRunningWithARateLimitOf)

	sc.Step(`^I send a GET request to "([^"]*)"$`, testCtx.iSendAGETRequestTo)
	sc.Step(`^I POST JSON to "([^"]*)":$`, testCtx.iPOSTJSONTo)
	sc.Step(`^I upload a barcode image for "([^"]*)"$`, testCtx.iUploadABarcodeImageFor)
	sc.Step(`^I upload a blank image$`, testCtx.iUploadABlankImage)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseFieldShouldBe)
	sc.Step(`^the response should be a barcode for "([^"]*)"$`, testCtx.theResponseShouldBeABarcodeFor)
	sc.Step(`^the decoded text should be "([^"]*)"$`, testCtx.theDecodedTextShouldBe)

	sc.Step(`^I open a WebSocket connection$`, testCtx.iOpenAWebSocketConnection)
	sc.Step(`^I send the WebSocket message:$`, testCtx.iSendTheWebSocketMessage)
	sc.Step(`^I should receive WebSocket messages "([^"]*)"$`, testCtx.iShouldReceiveWebSocketMessages)
	sc.Step(`^the WebSocket result should be a barcode for "([^"]*)"$`, testCtx.theWebSocketResultShouldBeABarcodeFor)
	sc.Step(`^the WebSocket error type should be "([^"]*)"$`, testCtx.theWebSocketErrorTypeShouldBe)
}
