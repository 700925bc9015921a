package constants

// NSQ topics to which new WorkItems are published, one per action.
// External workers subscribe to these and report progress back through
// the WorkItems API.
const (
	TopicDelete  = "delete_topic"
	TopicDPN     = "dpn_package_topic"
	TopicFetch   = "fetch_topic"
	TopicFixity  = "fixity_topic"
	TopicRestore = "restore_topic"
)

var topicForAction = map[string]string{
	ActionDelete:      TopicDelete,
	ActionDPN:         TopicDPN,
	ActionFixityCheck: TopicFixity,
	ActionIngest:      TopicFetch,
	ActionRestore:     TopicRestore,
}

// TopicFor returns the NSQ topic for newly created WorkItems with the
// given action. The second return value is false for unknown actions.
func TopicFor(action string) (string, bool) {
	topic, ok := topicForAction[action]
	return topic, ok
}
