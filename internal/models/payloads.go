package models

// These structs define the JSON payloads carried on the queue between the
// pipeline stages, and the push envelope Pub/Sub wraps them in.

// SplitRequest is the raw Cloud Storage event payload for a newly uploaded file.
type SplitRequest struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// PageReady is published by the splitter once per page.
type PageReady struct {
	DocID     string `json:"docId"`
	PageIndex int    `json:"pageIndex"`
	File      string `json:"file"`
	Bucket    string `json:"bucket"`
}

// AggregateReady is published once all pages of a document are complete.
type AggregateReady struct {
	DocID string `json:"docId"`
}

// PushEnvelope is the body of a Pub/Sub push delivery.
type PushEnvelope struct {
	Message struct {
		Data        string            `json:"data"`
		MessageID   string            `json:"messageId,omitempty"`
		Attributes  map[string]string `json:"attributes,omitempty"`
		PublishTime string            `json:"publishTime,omitempty"`
	} `json:"message"`
	Subscription string `json:"subscription,omitempty"`
}

// Classification is the classifier's verdict for one page.
type Classification struct {
	DocType   string `json:"docType"`
	Reasoning string `json:"reasoning"`
}
