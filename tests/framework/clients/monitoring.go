/*
Copyright 2025 The Rook Authors. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package clients

import (
	"context"

	monitoringv1 "github.com/prometheus-operator/prometheus-operator/pkg/apis/monitoring/v1"
	monitoringclient "github.com/prometheus-operator/prometheus-operator/pkg/client/versioned"
	"github.com/pkg/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// MonitoringClient checks the Prometheus rules rook deploys for Ceph, so the
// observability scenarios can assert alerts survive a monitoring restart.
type MonitoringClient struct {
	clientset monitoringclient.Interface
	namespace string
}

// NewMonitoringClient returns a client scoped to the rook namespace.
func NewMonitoringClient(clientset monitoringclient.Interface, namespace string) *MonitoringClient {
	return &MonitoringClient{clientset: clientset, namespace: namespace}
}

// ListRuleNames lists the PrometheusRule objects in the namespace.
func (m *MonitoringClient) ListRuleNames() ([]string, error) {
	rules, err := m.clientset.MonitoringV1().PrometheusRules(m.namespace).List(context.TODO(), metav1.ListOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list prometheus rules in %s", m.namespace)
	}
	names := make([]string, 0, len(rules.Items))
	for _, rule := range rules.Items {
		names = append(names, rule.Name)
	}
	return names, nil
}

// GetRule fetches one PrometheusRule object.
func (m *MonitoringClient) GetRule(name string) (*monitoringv1.PrometheusRule, error) {
	rule, err := m.clientset.MonitoringV1().PrometheusRules(m.namespace).Get(context.TODO(), name, metav1.GetOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get prometheus rule %s in %s", name, m.namespace)
	}
	return rule, nil
}

// HasAlert reports whether the named rule object defines the given alert,
// and returns the alert's labels for routing assertions.
func (m *MonitoringClient) HasAlert(ruleName, alertName string) (bool, map[string]string, error) {
	rule, err := m.GetRule(ruleName)
	if err != nil {
		return false, nil, err
	}
	for _, group := range rule.Spec.Groups {
		for _, r := range group.Rules {
			if r.Alert == alertName {
				return true, r.Labels, nil
			}
		}
	}
	return false, nil, nil
}
