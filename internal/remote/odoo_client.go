package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kolo/xmlrpc"
)

// collectionModels maps local collections to their Odoo models. The local
// document id travels in the pos_ref field; Odoo keeps its own integer ids.
var collectionModels = map[string]string{
	"orders":          "pos.order",
	"tables":          "restaurant.table",
	"menu_items":      "product.product",
	"menu_categories": "pos.category",
}

// OdooClient implements the order authority API over Odoo XML-RPC
// (execute_kw on /xmlrpc/2/object).
type OdooClient struct {
	URL       string
	Database  string
	Username  string
	Password  string
	Uid       int
	CommonURL string
	ObjectURL string
}

// NewOdooClient creates an Odoo-backed authority client. Authenticate must
// be called before the first operation.
func NewOdooClient(url, db, username, password string) *OdooClient {
	return &OdooClient{
		URL:       url,
		Database:  db,
		Username:  username,
		Password:  password,
		CommonURL: fmt.Sprintf("%s/xmlrpc/2/common", url),
		ObjectURL: fmt.Sprintf("%s/xmlrpc/2/object", url),
	}
}

// Authenticate authenticates with Odoo and stores the user ID
func (c *OdooClient) Authenticate() error {
	client, err := xmlrpc.NewClient(c.CommonURL, nil)
	if err != nil {
		return &NetworkError{Op: "authenticate", Err: err}
	}
	defer client.Close()

	args := []interface{}{c.Database, c.Username, c.Password, make([]interface{}, 0)}
	var uid int
	if err := client.Call("authenticate", args, &uid); err != nil {
		return &NetworkError{Op: "authenticate", Err: err}
	}

	c.Uid = uid
	return nil
}

func (c *OdooClient) List(ctx context.Context, collection string, since time.Time, limit int) ([]Document, error) {
	model, err := c.model(collection)
	if err != nil {
		return nil, err
	}

	domain := []interface{}{}
	if !since.IsZero() {
		domain = append(domain, []interface{}{"write_date", ">", since.UTC().Format("2006-01-02 15:04:05")})
	}

	var raw []map[string]interface{}
	if err := c.executeKw(model, "search_read", []interface{}{domain}, map[string]interface{}{
		"limit": limit,
		"order": "write_date asc",
	}, &raw); err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(raw))
	for _, record := range raw {
		doc, err := odooRecordToDocument(record)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s record: %w", model, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (c *OdooClient) Create(ctx context.Context, collection string, doc Document) error {
	model, err := c.model(collection)
	if err != nil {
		return err
	}

	// An existing pos_ref means a previous create did land; replaying it
	// must not duplicate the record.
	ids, err := c.findByRef(model, doc.ID)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		return ErrConflict
	}

	values, err := documentToOdooValues(doc)
	if err != nil {
		return err
	}

	var newID int64
	return c.executeKw(model, "create", []interface{}{values}, nil, &newID)
}

func (c *OdooClient) Update(ctx context.Context, collection string, doc Document) error {
	model, err := c.model(collection)
	if err != nil {
		return err
	}

	ids, err := c.findByRef(model, doc.ID)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return ErrNotFound
	}

	values, err := documentToOdooValues(doc)
	if err != nil {
		return err
	}

	var ok bool
	return c.executeKw(model, "write", []interface{}{ids, values}, nil, &ok)
}

func (c *OdooClient) model(collection string) (string, error) {
	model, ok := collectionModels[collection]
	if !ok {
		return "", fmt.Errorf("no Odoo model for collection %s", collection)
	}
	return model, nil
}

// findByRef resolves a local document id to Odoo record ids via pos_ref.
func (c *OdooClient) findByRef(model, ref string) ([]int64, error) {
	var ids []int64
	domain := []interface{}{[]interface{}{"pos_ref", "=", ref}}
	if err := c.executeKw(model, "search", []interface{}{domain}, map[string]interface{}{"limit": 2}, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// executeKw performs one execute_kw call. XML-RPC transport failures are
// systemic; Odoo-level faults come back as call errors too, so everything
// here classifies as a network error.
func (c *OdooClient) executeKw(model, method string, args []interface{}, kwargs map[string]interface{}, result interface{}) error {
	client, err := xmlrpc.NewClient(c.ObjectURL, nil)
	if err != nil {
		return &NetworkError{Op: method + " " + model, Err: err}
	}
	defer client.Close()

	callArgs := []interface{}{c.Database, c.Uid, c.Password, model, method, args}
	if kwargs != nil {
		callArgs = append(callArgs, kwargs)
	}
	if err := client.Call("execute_kw", callArgs, result); err != nil {
		return &NetworkError{Op: method + " " + model, Err: err}
	}
	return nil
}

// odooRecordToDocument lifts id and write_date out of a raw record and keeps
// the whole record as the payload, with pos_ref winning as the document id
// when present.
func odooRecordToDocument(record map[string]interface{}) (Document, error) {
	var doc Document

	if ref, ok := record["pos_ref"].(string); ok && ref != "" {
		doc.ID = ref
	} else if id, ok := record["id"].(int64); ok {
		doc.ID = fmt.Sprintf("odoo-%d", id)
	}

	if wd, ok := record["write_date"].(string); ok {
		t, err := time.Parse("2006-01-02 15:04:05", wd)
		if err != nil {
			return doc, fmt.Errorf("bad write_date %q: %w", wd, err)
		}
		doc.UpdatedAt = t.UTC()
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return doc, err
	}
	doc.Payload = payload
	return doc, nil
}

func documentToOdooValues(doc Document) (map[string]interface{}, error) {
	values := map[string]interface{}{}
	if err := json.Unmarshal(doc.Payload, &values); err != nil {
		return nil, fmt.Errorf("failed to decode payload for %s: %w", doc.ID, err)
	}
	values["pos_ref"] = doc.ID
	return values, nil
}
