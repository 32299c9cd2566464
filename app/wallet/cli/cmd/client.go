package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var client = http.Client{
	Timeout: 30 * time.Second,
}

// apiError is the error document returned by the node.
type apiError struct {
	Error  string            `json:"error"`
	Rule   string            `json:"rule,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// call sends the request to the node's public api and decodes the response
// into dataRecv when provided.
func call(method string, path string, dataSend any, dataRecv any) error {
	var body io.Reader
	if dataSend != nil {
		data, err := json.Marshal(dataSend)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	url := strings.TrimSuffix(nodeURL, "/") + "/v1" + path
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var ae apiError
		if err := json.NewDecoder(resp.Body).Decode(&ae); err != nil {
			return fmt.Errorf("node responded with %s", resp.Status)
		}

		msg := ae.Error
		if ae.Rule != "" {
			msg = fmt.Sprintf("%s: %s", ae.Rule, msg)
		}
		for field, fe := range ae.Fields {
			msg += fmt.Sprintf("\n  %s: %s", field, fe)
		}
		return fmt.Errorf("%s: %s", resp.Status, msg)
	}

	if dataRecv != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(dataRecv); err != nil {
			return err
		}
	}

	return nil
}
