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

package integration

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/pointer"

	"github.com/rook/ceph-chaos/pkg/poller"
	"github.com/rook/ceph-chaos/tests/framework/config"
)

// **********************************************************
// *** Service disruption tested by NetworkChaosSuite ***
// - LoadBalancer failover when a MetalLB speaker dies
// The suite stands up a throwaway nginx service, verifies it
// is reachable from outside the cluster, kills the speaker
// announcing it, and verifies the address fails over.
// **********************************************************
func TestNetworkChaosSuite(t *testing.T) {
	if !config.ChaosEnabled() {
		t.Skipf("set %s to run service disruption scenarios", config.EnvChaosEnabled)
	}
	suite.Run(t, new(NetworkChaosSuite))
}

const (
	netNamespace     = "chaos-net"
	metallbNamespace = "metallb-system"
	speakerLabel     = "component=speaker"
	nginxName        = "nginx-lb"
	nginxLabel       = "app=nginx-lb"
)

type NetworkChaosSuite struct {
	suite.Suite
	h *harness
}

func (s *NetworkChaosSuite) SetupSuite() {
	s.h = newHarness(s.T())
	require.NoError(s.T(), s.h.k8sh.CreateNamespace(netNamespace))
}

func (s *NetworkChaosSuite) TearDownSuite() {
	if err := s.h.k8sh.DeleteNamespace(netNamespace); err != nil {
		logger.Warningf("failed to delete namespace %s: %v", netNamespace, err)
	}
}

// waitForHTTPOK polls the URL from the test runner until it answers 200.
func (h *harness) waitForHTTPOK(ctx context.Context, url string, timeout time.Duration) (poller.Outcome, error) {
	settings := h.k8sh.PollSettings(timeout)
	settings.RetryOnError = true
	client := &http.Client{Timeout: 5 * time.Second}
	return poller.Poll(ctx, settings, fmt.Sprintf("%s reachable", url), func() (bool, string, error) {
		resp, err := client.Get(url)
		if err != nil {
			return false, "", err
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK, fmt.Sprintf("GET %s returned %d", url, resp.StatusCode), nil
	})
}

func (s *NetworkChaosSuite) TestLoadBalancerFailover() {
	const scenario = "NET01"
	t := s.T()
	h := s.h
	ctx := context.Background()

	h.rec.LogStep(scenario, "deploying nginx behind a LoadBalancer service")
	labels := map[string]string{"app": nginxName}
	deployment := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: nginxName, Namespace: netNamespace},
		Spec: appsv1.DeploymentSpec{
			Replicas: pointer.Int32(1),
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{
						Name:  "nginx",
						Image: "nginx:1.25",
						Ports: []corev1.ContainerPort{{ContainerPort: 80}},
					}},
				},
			},
		},
	}
	_, err := h.k8sh.Clientset.AppsV1().Deployments(netNamespace).Create(ctx, deployment, metav1.CreateOptions{})
	require.NoError(t, err)

	service := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: nginxName, Namespace: netNamespace},
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeLoadBalancer,
			Selector: labels,
			Ports: []corev1.ServicePort{{
				Port:       80,
				TargetPort: intstr.FromInt(80),
			}},
		},
	}
	_, err = h.k8sh.Clientset.CoreV1().Services(netNamespace).Create(ctx, service, metav1.CreateOptions{})
	require.NoError(t, err)

	outcome, err := h.k8sh.WaitForLabeledPodsToRun(ctx, netNamespace, nginxLabel, h.settings.RecoveryTimeout)
	h.requireSatisfied(t, outcome, err, "nginx pod running")

	ip, outcome, err := h.k8sh.WaitForServiceIngressIP(ctx, netNamespace, nginxName, h.settings.RecoveryTimeout)
	h.requireSatisfied(t, outcome, err, "external IP assigned")
	url := fmt.Sprintf("http://%s", ip)
	h.rec.LogStep(scenario, fmt.Sprintf("service %s got external IP %s", nginxName, ip))

	outcome, err = h.waitForHTTPOK(ctx, url, h.settings.RecoveryTimeout)
	h.requireSatisfied(t, outcome, err, "service reachable before the disruption")

	speakers, err := h.k8sh.GetPodNamesByLabel(metallbNamespace, speakerLabel)
	require.NoError(t, err)
	require.NotEmpty(t, speakers, "no MetalLB speaker pods in %s; is MetalLB deployed?", metallbNamespace)
	h.rec.LogStep(scenario, fmt.Sprintf("deleting speaker pod %s", speakers[0]))
	err = h.k8sh.Clientset.CoreV1().Pods(metallbNamespace).Delete(ctx, speakers[0], metav1.DeleteOptions{})
	require.NoError(t, err)

	// another speaker must pick up the address announcement
	outcome, err = h.waitForHTTPOK(ctx, url, h.settings.RecoveryTimeout)
	h.requireSatisfied(t, outcome, err, "service reachable after the speaker was killed")

	outcome, err = h.k8sh.WaitForLabeledPodsToRun(ctx, metallbNamespace, speakerLabel, h.settings.RecoveryTimeout)
	h.requireSatisfied(t, outcome, err, "speaker pods recovered")
	if err := h.rec.Capture(scenario, "failover", outcome.LastObservation); err != nil {
		logger.Warningf("failed to record the failover state: %v", err)
	}
}
