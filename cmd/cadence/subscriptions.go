package main

import (
	"fmt"

	"github.com/phrazzld/cadence-api/internal/processor"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// daprSubscription is the declarative Dapr subscription resource.
type daprSubscription struct {
	APIVersion string               `yaml:"apiVersion"`
	Kind       string               `yaml:"kind"`
	Metadata   map[string]string    `yaml:"metadata"`
	Spec       daprSubscriptionSpec `yaml:"spec"`
	Scopes     []string             `yaml:"scopes,omitempty"`
}

type daprSubscriptionSpec struct {
	Topic      string `yaml:"topic"`
	Route      string `yaml:"route"`
	PubSubName string `yaml:"pubsubname"`
}

// subscriptionManifests renders the declarative subscriptions of a processor.
func subscriptionManifests(name, pubsubName string) ([]daprSubscription, error) {
	kind, err := lookupProcessor(name)
	if err != nil {
		return nil, err
	}

	subs := processor.Subscriptions(pubsubName, []processor.Route{{Topic: kind.topic}})
	out := make([]daprSubscription, 0, len(subs))
	for _, sub := range subs {
		out = append(out, daprSubscription{
			APIVersion: "dapr.io/v2alpha1",
			Kind:       "Subscription",
			Metadata:   map[string]string{"name": kind.service + "-" + sub.Topic},
			Spec: daprSubscriptionSpec{
				Topic:      sub.Topic,
				Route:      sub.Route,
				PubSubName: sub.PubSubName,
			},
			Scopes: []string{kind.service},
		})
	}
	return out, nil
}

func newSubscriptionsCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:       "subscriptions <recurring|audit|notification>",
		Short:     "Print the Dapr subscription manifests of a processor",
		Args:      cobra.ExactArgs(1),
		ValidArgs: processorNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifests, err := subscriptionManifests(args[0], state.v.GetString("events.pubsub_name"))
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer func() { _ = enc.Close() }()
			for _, m := range manifests {
				if err := enc.Encode(m); err != nil {
					return fmt.Errorf("failed to encode subscription: %w", err)
				}
			}
			return nil
		},
	}
}
