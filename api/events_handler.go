package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xraph/jobq/stream"
)

// events streams broker events as server-sent events until the client
// disconnects. Repeat the topic query parameter to subscribe to several
// topics; the default is the firehose.
func (a *API) events(c *gin.Context) {
	if a.broker == nil {
		a.fail(c, http.StatusNotFound, errNoBroker)
		return
	}

	topics := c.QueryArray("topic")
	if len(topics) == 0 {
		topics = []string{stream.TopicFirehose}
	}
	for _, topic := range topics {
		if err := stream.ValidateTopic(topic); err != nil {
			a.fail(c, http.StatusBadRequest, err)
			return
		}
	}

	subID := fmt.Sprintf("http-%d", a.subSeq.Add(1))
	sub := a.broker.Subscribe(subID, topics...)
	defer a.broker.RemoveSubscriber(subID)

	ctx := c.Request.Context()
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	c.Stream(func(io.Writer) bool {
		select {
		case evt, ok := <-sub.C():
			if !ok {
				return false
			}
			c.SSEvent(string(evt.Type), evt)
			sub.AddCredits(1)
			return true
		case <-ctx.Done():
			return false
		}
	})
}
