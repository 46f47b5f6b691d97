package pipeline

import "github.com/target/title-doctor/internal/domain/model"

// Subscriber names the handler a topic is delivered to.
type Subscriber string

// Subscribers of the route table.
const (
	SubscriberResolveChannel   Subscriber = Subscriber(model.StageResolveChannel)
	SubscriberFetchContent     Subscriber = Subscriber(model.StageFetchContent)
	SubscriberGenerateTitles   Subscriber = Subscriber(model.StageGenerateTitles)
	SubscriberNotifySuccess    Subscriber = Subscriber(model.StageNotifySuccess)
	SubscriberFailureAggregate Subscriber = "failure-aggregator"
)

// routes is the static topic to subscriber table. Every failure converges on
// the failure aggregator; job.completed has no subscriber.
var routes = map[Topic]Subscriber{
	TopicJobSubmitted:    SubscriberResolveChannel,
	TopicChannelResolved: SubscriberFetchContent,
	TopicContentFetched:  SubscriberGenerateTitles,
	TopicTitlesGenerated: SubscriberNotifySuccess,
	TopicStageFailed:     SubscriberFailureAggregate,
}

// Route returns the subscriber for topic, or false when the topic ends the pipeline.
func Route(topic Topic) (Subscriber, bool) {
	s, ok := routes[topic]
	return s, ok
}

// Subscribers lists every subscriber in pipeline order.
func Subscribers() []Subscriber {
	return []Subscriber{
		SubscriberResolveChannel,
		SubscriberFetchContent,
		SubscriberGenerateTitles,
		SubscriberNotifySuccess,
		SubscriberFailureAggregate,
	}
}
