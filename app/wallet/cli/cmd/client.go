package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// client talks to the public api of a node.
type client struct {
	url  string
	http *http.Client
}

func newClient(url string) *client {
	return &client{
		url:  url,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *client) balance(address string) (uint64, error) {
	var resp struct {
		Balance uint64 `json:"balance"`
	}

	if err := c.do(http.MethodGet, fmt.Sprintf("%s/v1/balance/%s", c.url, address), nil, &resp); err != nil {
		return 0, err
	}

	return resp.Balance, nil
}

func (c *client) submit(tx database.Tx) error {
	return c.do(http.MethodPost, fmt.Sprintf("%s/v1/tx/submit", c.url), tx, nil)
}

func (c *client) do(method string, url string, dataSend any, dataRecv any) error {
	var body io.Reader
	if dataSend != nil {
		data, err := json.Marshal(dataSend)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var er struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, er.Error)
	}

	if dataRecv != nil {
		if err := json.NewDecoder(resp.Body).Decode(dataRecv); err != nil {
			return err
		}
	}

	return nil
}
