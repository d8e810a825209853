package consulkv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Get retrieves the value stored under prefix+key as a string.
// Returns ErrNotFound for an absent key.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	data, err := c.GetBytes(ctx, key)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetOrDefault retrieves a value by key, returning defaultValue if the key
// doesn't exist.
func (c *Client) GetOrDefault(ctx context.Context, key, defaultValue string) (string, error) {
	val, err := c.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return defaultValue, nil
	}
	return val, err
}

// GetBytes retrieves a value by key as raw bytes.
func (c *Client) GetBytes(ctx context.Context, key string) ([]byte, error) {
	rec, err := c.GetRecord(ctx, key)
	if err != nil {
		return nil, err
	}
	return rec.Value, nil
}

// GetRecord fetches the full record for a key, including the modify index
// needed for SetCAS and DeleteCAS.
func (c *Client) GetRecord(ctx context.Context, key string) (Record, error) {
	if key == "" {
		return Record{}, errors.New("key is required")
	}

	u, err := c.kvURL(c.fullKey(key), nil)
	if err != nil {
		return Record{}, err
	}

	data, _, err := c.do(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return Record{}, err
	}

	recs, err := decodeRecords(key, data)
	if err != nil {
		return Record{}, err
	}
	if len(recs) == 0 {
		return Record{}, ErrNotFound
	}
	return recs[0], nil
}

// GetRecords lists every record under prefix+subprefix recursively. An absent
// subtree yields an empty result, not an error. Pass empty string to list
// everything under the client prefix.
func (c *Client) GetRecords(ctx context.Context, subprefix string) ([]Record, error) {
	scope := c.scope(subprefix)

	u, err := c.kvURL(scope, url.Values{"recurse": []string{"true"}})
	if err != nil {
		return nil, err
	}

	data, _, err := c.do(ctx, http.MethodGet, u, http.NoBody)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeRecords(scope, data)
}

// Keys lists all key names under prefix+subprefix. The client prefix stays in
// the returned names the way the agent reports them, so derived clients see
// their full keys.
func (c *Client) Keys(ctx context.Context, subprefix string) ([]string, error) {
	scope := c.scope(subprefix)

	u, err := c.kvURL(scope, url.Values{"keys": []string{"true"}})
	if err != nil {
		return nil, err
	}

	data, _, err := c.do(ctx, http.MethodGet, u, http.NoBody)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, &DecodeError{Key: scope, Err: err}
	}
	return keys, nil
}

// GetTree lists all keys under prefix+subprefix and folds them into a nested
// Tree keyed by path segment, with values at the leaves. An absent subtree
// yields an empty Tree. A key that is both a value and a prefix of other keys
// fails the fold with *TreeConflictError.
func (c *Client) GetTree(ctx context.Context, subprefix string) (Tree, error) {
	scope := c.scope(subprefix)

	u, err := c.kvURL(scope, url.Values{"recurse": []string{"true"}})
	if err != nil {
		return nil, err
	}

	data, _, err := c.do(ctx, http.MethodGet, u, http.NoBody)
	if errors.Is(err, ErrNotFound) {
		return Tree{}, nil
	}
	if err != nil {
		return nil, err
	}

	recs, err := decodeRecords(scope, data)
	if err != nil {
		return nil, err
	}
	return buildTree(recs, scope)
}

// Set stores a value under prefix+key.
func (c *Client) Set(ctx context.Context, key, value string) error {
	return c.SetBytes(ctx, key, []byte(value))
}

// SetBytes stores a raw byte value under prefix+key.
func (c *Client) SetBytes(ctx context.Context, key string, value []byte) error {
	_, err := c.put(ctx, key, value, nil)
	return err
}

// SetWithFlags stores a value with an opaque flags number attached, returned
// later on the key's Record.
func (c *Client) SetWithFlags(ctx context.Context, key, value string, flags uint64) error {
	_, err := c.put(ctx, key, []byte(value), url.Values{"flags": []string{strconv.FormatUint(flags, 10)}})
	return err
}

// SetCAS stores a value only if the key's modify index still matches index.
// Index 0 makes the put succeed only if the key doesn't exist yet. Returns
// false when the check fails, with no error.
func (c *Client) SetCAS(ctx context.Context, key, value string, index uint64) (bool, error) {
	return c.put(ctx, key, []byte(value), url.Values{"cas": []string{strconv.FormatUint(index, 10)}})
}

// Delete removes a key. Deleting an absent key is not an error, matching the
// agent's behavior.
func (c *Client) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("key is required")
	}

	u, err := c.kvURL(c.fullKey(key), nil)
	if err != nil {
		return err
	}

	data, _, err := c.do(ctx, http.MethodDelete, u, http.NoBody)
	if err != nil {
		return err
	}
	_, err = parseAgentBool(key, data)
	return err
}

// DeleteCAS removes a key only if its modify index still matches index.
// Returns false when the check fails, with no error.
func (c *Client) DeleteCAS(ctx context.Context, key string, index uint64) (bool, error) {
	if key == "" {
		return false, errors.New("key is required")
	}

	u, err := c.kvURL(c.fullKey(key), url.Values{"cas": []string{strconv.FormatUint(index, 10)}})
	if err != nil {
		return false, err
	}

	data, _, err := c.do(ctx, http.MethodDelete, u, http.NoBody)
	if err != nil {
		return false, err
	}
	return parseAgentBool(key, data)
}

// DeleteTree removes every key under prefix+subprefix.
func (c *Client) DeleteTree(ctx context.Context, subprefix string) error {
	scope := c.scope(subprefix)

	u, err := c.kvURL(scope, url.Values{"recurse": []string{"true"}})
	if err != nil {
		return err
	}

	data, _, err := c.do(ctx, http.MethodDelete, u, http.NoBody)
	if err != nil {
		return err
	}
	_, err = parseAgentBool(scope, data)
	return err
}

// put issues a PUT for the key and parses the agent's bare true/false answer.
func (c *Client) put(ctx context.Context, key string, value []byte, query url.Values) (bool, error) {
	if key == "" {
		return false, errors.New("key is required")
	}

	u, err := c.kvURL(c.fullKey(key), query)
	if err != nil {
		return false, err
	}

	data, _, err := c.do(ctx, http.MethodPut, u, bytes.NewReader(value))
	if err != nil {
		return false, err
	}
	return parseAgentBool(key, data)
}

// decodeRecords parses the JSON list the agent returns for GET requests.
// Malformed JSON or base64 values surface as *DecodeError.
func decodeRecords(key string, data []byte) ([]Record, error) {
	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, &DecodeError{Key: key, Err: err}
	}
	return recs, nil
}

// parseAgentBool parses the bare "true"/"false" body of PUT and DELETE
// responses.
func parseAgentBool(key string, data []byte) (bool, error) {
	ok, err := strconv.ParseBool(strings.TrimSpace(string(data)))
	if err != nil {
		return false, &DecodeError{Key: key, Err: err}
	}
	return ok, nil
}
