package network

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

type NSQClient struct {
	URL string
}

// Formally define this so we can generate mocks for testing.
type NSQClientInterface interface {
	Enqueue(topic string, workItemID int64) error
}

// NewNSQClient returns a new NSQ client that will connect to the NSQ
// server at the specified url, which usually ends with :4151. This is
// the URL to which we post items we want to queue, and from which the
// preservation workers read.
//
// Note that this client provides write access to the queue only. The
// workers do the reading.
func NewNSQClient(url string) *NSQClient {
	return &NSQClient{URL: url}
}

// Enqueue posts a WorkItem id to NSQ under the given topic, for
// example restore_topic or fixity_topic.
func (client *NSQClient) Enqueue(topic string, workItemID int64) error {
	return client.enqueueString(topic, strconv.FormatInt(workItemID, 10))
}

func (client *NSQClient) enqueueString(topic string, data string) error {
	url := fmt.Sprintf("%s/pub?topic=%s", client.URL, topic)
	resp, err := http.Post(url, "text/html", bytes.NewBuffer([]byte(data)))
	if err != nil {
		return fmt.Errorf("Nsqd returned an error when queuing data: %v", err)
	}
	if resp == nil {
		return fmt.Errorf("No response from nsqd at '%s'. Is it running?", url)
	}

	// nsqd sends a simple OK. We have to read the response body,
	// or the connection will hang open forever.
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != 200 {
		bodyText := "[no response body]"
		if len(body) > 0 {
			bodyText = string(body)
		}
		return fmt.Errorf("nsqd returned status code %d when attempting to queue data. "+
			"Response body: %s", resp.StatusCode, bodyText)
	}
	return nil
}
