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

// Package utils is the Kubernetes-facing glue of the harness: a typed
// client for reads, kubectl passthrough for the imperative verbs the
// scenarios need (drain, rollout, apply), and poller-backed waits for the
// recovery conditions.
package utils

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/pkg/capnslog"
	"github.com/pkg/errors"
	monitoringclient "github.com/prometheus-operator/prometheus-operator/pkg/client/versioned"
	corev1 "k8s.io/api/core/v1"
	kerrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/pointer"
	"sigs.k8s.io/controller-runtime/pkg/client/config"

	"github.com/rook/ceph-chaos/pkg/poller"
	"github.com/rook/ceph-chaos/pkg/util/exec"
	chaosconfig "github.com/rook/ceph-chaos/tests/framework/config"
)

var logger = capnslog.NewPackageLogger("github.com/rook/ceph-chaos", "utils")

const (
	// kubectlTimeout bounds a single kubectl invocation that is not itself
	// a wait (drain and rollout get longer, explicit timeouts).
	kubectlTimeout = 30 * time.Second
)

// K8sHelper wraps the clients the scenarios share.
type K8sHelper struct {
	executor            exec.Executor
	Clientset           kubernetes.Interface
	MonitoringClientset monitoringclient.Interface
	Settings            chaosconfig.Settings
}

// CreateK8sHelper connects to the cluster named by the ambient kubeconfig
// (or the in-cluster config when running in a pod).
func CreateK8sHelper(settings chaosconfig.Settings) (*K8sHelper, error) {
	restConfig, err := config.GetConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get kube config")
	}
	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get clientset")
	}
	monitoringClientset, err := monitoringclient.NewForConfig(restConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get monitoring clientset")
	}
	return NewK8sHelper(&exec.CommandExecutor{}, clientset, monitoringClientset, settings), nil
}

// NewK8sHelper builds a helper from injected clients, used by unit tests
// with a fake clientset and mock executor.
func NewK8sHelper(executor exec.Executor, clientset kubernetes.Interface, monitoringClientset monitoringclient.Interface, settings chaosconfig.Settings) *K8sHelper {
	return &K8sHelper{
		executor:            executor,
		Clientset:           clientset,
		MonitoringClientset: monitoringClientset,
		Settings:            settings,
	}
}

// PollSettings returns the scenario polling defaults with the given timeout.
func (k8sh *K8sHelper) PollSettings(timeout time.Duration) poller.Settings {
	interval := k8sh.Settings.PollInterval
	if interval > timeout {
		interval = timeout
	}
	return poller.Settings{Timeout: timeout, Interval: interval}
}

// Kubectl runs a kubectl command with the default timeout.
func (k8sh *K8sHelper) Kubectl(args ...string) (string, error) {
	return k8sh.KubectlWithTimeout(kubectlTimeout, args...)
}

// KubectlWithTimeout runs a kubectl command with an explicit timeout.
func (k8sh *K8sHelper) KubectlWithTimeout(timeout time.Duration, args ...string) (string, error) {
	out, err := k8sh.executor.ExecuteCommandWithTimeout(timeout, "kubectl", args...)
	if err != nil {
		return out, errors.Wrapf(err, "failed to run kubectl %v", args)
	}
	return out, nil
}

// KubectlWithStdin pipes a manifest to kubectl, e.g. `kubectl apply -f -`.
func (k8sh *K8sHelper) KubectlWithStdin(stdin string, args ...string) (string, error) {
	out, err := k8sh.executor.ExecuteCommandWithStdin(kubectlTimeout, stdin, "kubectl", args...)
	if err != nil {
		return out, errors.Wrapf(err, "failed to run kubectl %v with stdin", args)
	}
	return out, nil
}

// ExecInPod runs a command inside a pod and returns its combined output.
func (k8sh *K8sHelper) ExecInPod(namespace, podName string, command ...string) (string, error) {
	args := append([]string{"-n", namespace, "exec", podName, "--"}, command...)
	return k8sh.KubectlWithTimeout(2*time.Minute, args...)
}

// GetPodNamesByLabel lists the names of pods matching a label selector.
func (k8sh *K8sHelper) GetPodNamesByLabel(namespace, label string) ([]string, error) {
	pods, err := k8sh.Clientset.CoreV1().Pods(namespace).List(context.TODO(), metav1.ListOptions{LabelSelector: label})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list pods with label %s in %s", label, namespace)
	}
	names := make([]string, 0, len(pods.Items))
	for i := range pods.Items {
		names = append(names, pods.Items[i].Name)
	}
	return names, nil
}

// GetPodNode returns the node a pod is scheduled on.
func (k8sh *K8sHelper) GetPodNode(namespace, podName string) (string, error) {
	pod, err := k8sh.Clientset.CoreV1().Pods(namespace).Get(context.TODO(), podName, metav1.GetOptions{})
	if err != nil {
		return "", errors.Wrapf(err, "failed to get pod %s in %s", podName, namespace)
	}
	return pod.Spec.NodeName, nil
}

// GetNodeInternalIP returns the InternalIP address of a node.
func (k8sh *K8sHelper) GetNodeInternalIP(nodeName string) (string, error) {
	node, err := k8sh.Clientset.CoreV1().Nodes().Get(context.TODO(), nodeName, metav1.GetOptions{})
	if err != nil {
		return "", errors.Wrapf(err, "failed to get node %s", nodeName)
	}
	for _, addr := range node.Status.Addresses {
		if addr.Type == corev1.NodeInternalIP {
			return addr.Address, nil
		}
	}
	return "", errors.Errorf("node %s has no InternalIP address", nodeName)
}

// IsNodeReady reports the node's Ready condition.
func (k8sh *K8sHelper) IsNodeReady(nodeName string) (bool, error) {
	node, err := k8sh.Clientset.CoreV1().Nodes().Get(context.TODO(), nodeName, metav1.GetOptions{})
	if err != nil {
		return false, errors.Wrapf(err, "failed to get node %s", nodeName)
	}
	for _, cond := range node.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			return cond.Status == corev1.ConditionTrue, nil
		}
	}
	return false, nil
}

// DrainNode cordons and evicts a node's pods the way an operator would
// before maintenance.
func (k8sh *K8sHelper) DrainNode(nodeName string) (string, error) {
	return k8sh.KubectlWithTimeout(5*time.Minute, "drain", nodeName,
		"--ignore-daemonsets", "--delete-emptydir-data", "--timeout=4m")
}

// CordonNode marks a node unschedulable without evicting anything.
func (k8sh *K8sHelper) CordonNode(nodeName string) (string, error) {
	return k8sh.Kubectl("cordon", nodeName)
}

// UncordonNode allows scheduling on a node again.
func (k8sh *K8sHelper) UncordonNode(nodeName string) (string, error) {
	return k8sh.Kubectl("uncordon", nodeName)
}

// RestartDeployment triggers a rolling restart.
func (k8sh *K8sHelper) RestartDeployment(namespace, deployment string) (string, error) {
	return k8sh.Kubectl("-n", namespace, "rollout", "restart", "deploy/"+deployment)
}

// ScaleDeployment sets a deployment's replica count.
func (k8sh *K8sHelper) ScaleDeployment(namespace, deployment string, replicas int) (string, error) {
	return k8sh.Kubectl("-n", namespace, "scale", "deploy/"+deployment,
		fmt.Sprintf("--replicas=%d", replicas))
}

// DeletePodsWithLabel deletes all pods matching a selector and lets their
// controller replace them.
func (k8sh *K8sHelper) DeletePodsWithLabel(namespace, label string) (string, error) {
	return k8sh.KubectlWithTimeout(2*time.Minute, "-n", namespace, "delete", "pod", "-l", label, "--wait=false")
}

// WaitForRollout blocks until the rollout of the given kind/name completes.
func (k8sh *K8sHelper) WaitForRollout(namespace, kindName string, timeout time.Duration) (string, error) {
	return k8sh.KubectlWithTimeout(timeout+kubectlTimeout, "-n", namespace, "rollout", "status", kindName,
		fmt.Sprintf("--timeout=%ds", int(timeout.Seconds())))
}

// GetPodPhase returns the pod's current phase.
func (k8sh *K8sHelper) GetPodPhase(namespace, podName string) (corev1.PodPhase, error) {
	pod, err := k8sh.Clientset.CoreV1().Pods(namespace).Get(context.TODO(), podName, metav1.GetOptions{})
	if err != nil {
		return "", errors.Wrapf(err, "failed to get pod %s in %s", podName, namespace)
	}
	return pod.Status.Phase, nil
}

// SetPodImage swaps the image of one container in a running pod. Image is one
// of the few pod fields the apiserver allows updating in place.
func (k8sh *K8sHelper) SetPodImage(namespace, podName, containerName, image string) error {
	pods := k8sh.Clientset.CoreV1().Pods(namespace)
	pod, err := pods.Get(context.TODO(), podName, metav1.GetOptions{})
	if err != nil {
		return errors.Wrapf(err, "failed to get pod %s in %s", podName, namespace)
	}
	updated := false
	for i := range pod.Spec.Containers {
		if pod.Spec.Containers[i].Name == containerName {
			pod.Spec.Containers[i].Image = image
			updated = true
		}
	}
	if !updated {
		return errors.Errorf("pod %s has no container %s", podName, containerName)
	}
	if _, err := pods.Update(context.TODO(), pod, metav1.UpdateOptions{}); err != nil {
		return errors.Wrapf(err, "failed to update image of pod %s", podName)
	}
	return nil
}

// WaitForNodeReady polls until the node reports Ready. Reads are retried on
// error because the apiserver itself may be flapping while a control-plane
// node reboots.
func (k8sh *K8sHelper) WaitForNodeReady(ctx context.Context, nodeName string, timeout time.Duration) (poller.Outcome, error) {
	settings := k8sh.PollSettings(timeout)
	settings.RetryOnError = true
	return poller.Poll(ctx, settings, fmt.Sprintf("node %s ready", nodeName), func() (bool, string, error) {
		ready, err := k8sh.IsNodeReady(nodeName)
		if err != nil {
			return false, "", err
		}
		return ready, fmt.Sprintf("node %s ready=%t", nodeName, ready), nil
	})
}

// WaitForLabeledPodsToRun polls until every pod matching the selector is
// Running and there is at least one.
func (k8sh *K8sHelper) WaitForLabeledPodsToRun(ctx context.Context, namespace, label string, timeout time.Duration) (poller.Outcome, error) {
	return poller.Poll(ctx, k8sh.PollSettings(timeout), fmt.Sprintf("pods %s running in %s", label, namespace),
		func() (bool, string, error) {
			pods, err := k8sh.Clientset.CoreV1().Pods(namespace).List(context.TODO(), metav1.ListOptions{LabelSelector: label})
			if err != nil {
				return false, "", err
			}
			if len(pods.Items) == 0 {
				return false, fmt.Sprintf("no pods with label %s", label), nil
			}
			running := 0
			lastPhase := ""
			for i := range pods.Items {
				if pods.Items[i].Status.Phase == corev1.PodRunning {
					running++
				}
				lastPhase = string(pods.Items[i].Status.Phase)
			}
			observation := fmt.Sprintf("%d/%d pods running, last phase %s", running, len(pods.Items), lastPhase)
			return running == len(pods.Items), observation, nil
		})
}

// WaitForNodeCondition polls until the node reports the given condition with
// the given status, e.g. DiskPressure=True while a node is being filled.
func (k8sh *K8sHelper) WaitForNodeCondition(ctx context.Context, nodeName string, condType corev1.NodeConditionType, condStatus corev1.ConditionStatus, timeout time.Duration) (poller.Outcome, error) {
	settings := k8sh.PollSettings(timeout)
	settings.RetryOnError = true
	return poller.Poll(ctx, settings, fmt.Sprintf("node %s condition %s=%s", nodeName, condType, condStatus),
		func() (bool, string, error) {
			node, err := k8sh.Clientset.CoreV1().Nodes().Get(context.TODO(), nodeName, metav1.GetOptions{})
			if err != nil {
				return false, "", err
			}
			for _, cond := range node.Status.Conditions {
				if cond.Type == condType {
					return cond.Status == condStatus, fmt.Sprintf("node %s %s=%s", nodeName, condType, cond.Status), nil
				}
			}
			return false, fmt.Sprintf("node %s has no %s condition", nodeName, condType), nil
		})
}

// WaitForPodImagePullBackOff polls until one of the pod's containers is stuck
// waiting on an image pull.
func (k8sh *K8sHelper) WaitForPodImagePullBackOff(ctx context.Context, namespace, podName string, timeout time.Duration) (poller.Outcome, error) {
	return poller.Poll(ctx, k8sh.PollSettings(timeout), fmt.Sprintf("pod %s in image pull backoff", podName),
		func() (bool, string, error) {
			pod, err := k8sh.Clientset.CoreV1().Pods(namespace).Get(context.TODO(), podName, metav1.GetOptions{})
			if err != nil {
				return false, "", err
			}
			for _, cs := range pod.Status.ContainerStatuses {
				if cs.State.Waiting == nil {
					continue
				}
				reason := cs.State.Waiting.Reason
				if reason == "ImagePullBackOff" || reason == "ErrImagePull" {
					return true, fmt.Sprintf("container %s waiting: %s", cs.Name, reason), nil
				}
			}
			return false, fmt.Sprintf("pod %s phase %s, no pull backoff yet", podName, pod.Status.Phase), nil
		})
}

// WaitForPodReady polls until the named pod reports the Ready condition.
func (k8sh *K8sHelper) WaitForPodReady(ctx context.Context, namespace, podName string, timeout time.Duration) (poller.Outcome, error) {
	return poller.Poll(ctx, k8sh.PollSettings(timeout), fmt.Sprintf("pod %s ready", podName),
		func() (bool, string, error) {
			pod, err := k8sh.Clientset.CoreV1().Pods(namespace).Get(context.TODO(), podName, metav1.GetOptions{})
			if err != nil {
				return false, "", err
			}
			for _, cond := range pod.Status.Conditions {
				if cond.Type == corev1.PodReady {
					return cond.Status == corev1.ConditionTrue, fmt.Sprintf("pod %s ready=%s", podName, cond.Status), nil
				}
			}
			return false, fmt.Sprintf("pod %s phase %s", podName, pod.Status.Phase), nil
		})
}

// WaitForLabeledPodsGone polls until no pods match the selector, e.g. after
// scaling a deployment to zero.
func (k8sh *K8sHelper) WaitForLabeledPodsGone(ctx context.Context, namespace, label string, timeout time.Duration) (poller.Outcome, error) {
	return poller.Poll(ctx, k8sh.PollSettings(timeout), fmt.Sprintf("pods %s gone from %s", label, namespace),
		func() (bool, string, error) {
			pods, err := k8sh.Clientset.CoreV1().Pods(namespace).List(context.TODO(), metav1.ListOptions{LabelSelector: label})
			if err != nil {
				return false, "", err
			}
			return len(pods.Items) == 0, fmt.Sprintf("%d pod(s) with label %s remain", len(pods.Items), label), nil
		})
}

// WaitForServiceIngressIP polls until the service has a load balancer ingress
// IP assigned and returns it.
func (k8sh *K8sHelper) WaitForServiceIngressIP(ctx context.Context, namespace, serviceName string, timeout time.Duration) (string, poller.Outcome, error) {
	ip := ""
	outcome, err := poller.Poll(ctx, k8sh.PollSettings(timeout), fmt.Sprintf("service %s external IP", serviceName),
		func() (bool, string, error) {
			svc, err := k8sh.Clientset.CoreV1().Services(namespace).Get(context.TODO(), serviceName, metav1.GetOptions{})
			if err != nil {
				return false, "", err
			}
			for _, ingress := range svc.Status.LoadBalancer.Ingress {
				if ingress.IP != "" {
					ip = ingress.IP
					return true, fmt.Sprintf("service %s has external IP %s", serviceName, ip), nil
				}
			}
			return false, fmt.Sprintf("service %s has no ingress IP yet", serviceName), nil
		})
	return ip, outcome, err
}

// WaitForPodReschedule polls until the selector resolves to a running pod
// with a different name than the one observed before the disruption.
func (k8sh *K8sHelper) WaitForPodReschedule(ctx context.Context, namespace, label, previousPod string, timeout time.Duration) (string, poller.Outcome, error) {
	newPod := ""
	outcome, err := poller.Poll(ctx, k8sh.PollSettings(timeout),
		fmt.Sprintf("pod %s rescheduled away from %s", label, previousPod),
		func() (bool, string, error) {
			pods, err := k8sh.Clientset.CoreV1().Pods(namespace).List(context.TODO(), metav1.ListOptions{LabelSelector: label})
			if err != nil {
				return false, "", err
			}
			for i := range pods.Items {
				pod := &pods.Items[i]
				if pod.Name != previousPod && pod.Status.Phase == corev1.PodRunning {
					newPod = pod.Name
					return true, fmt.Sprintf("pod %s running on %s", pod.Name, pod.Spec.NodeName), nil
				}
			}
			return false, fmt.Sprintf("still %d pod(s), none rescheduled", len(pods.Items)), nil
		})
	return newPod, outcome, err
}

// WaitUntilPodIsDeleted polls until the named pod is gone.
func (k8sh *K8sHelper) WaitUntilPodIsDeleted(ctx context.Context, namespace, podName string, timeout time.Duration) (poller.Outcome, error) {
	return poller.Poll(ctx, k8sh.PollSettings(timeout), fmt.Sprintf("pod %s deleted", podName),
		func() (bool, string, error) {
			_, err := k8sh.Clientset.CoreV1().Pods(namespace).Get(context.TODO(), podName, metav1.GetOptions{})
			if err != nil {
				if kerrors.IsNotFound(err) {
					return true, fmt.Sprintf("pod %s deleted", podName), nil
				}
				return false, "", err
			}
			return false, fmt.Sprintf("pod %s still present", podName), nil
		})
}

// WaitUntilPVCIsBound polls until the claim reaches the Bound phase.
func (k8sh *K8sHelper) WaitUntilPVCIsBound(ctx context.Context, namespace, pvcName string, timeout time.Duration) (poller.Outcome, error) {
	return poller.Poll(ctx, k8sh.PollSettings(timeout), fmt.Sprintf("pvc %s bound", pvcName),
		func() (bool, string, error) {
			pvc, err := k8sh.Clientset.CoreV1().PersistentVolumeClaims(namespace).Get(context.TODO(), pvcName, metav1.GetOptions{})
			if err != nil {
				return false, "", err
			}
			return pvc.Status.Phase == corev1.ClaimBound, fmt.Sprintf("pvc %s phase %s", pvcName, pvc.Status.Phase), nil
		})
}

// WaitUntilPVCIsExpanded polls until the claim's reported capacity reaches
// the requested size.
func (k8sh *K8sHelper) WaitUntilPVCIsExpanded(ctx context.Context, namespace, pvcName, size string, timeout time.Duration) (poller.Outcome, error) {
	desired := resource.MustParse(size)
	return poller.Poll(ctx, k8sh.PollSettings(timeout), fmt.Sprintf("pvc %s expanded to %s", pvcName, size),
		func() (bool, string, error) {
			pvc, err := k8sh.Clientset.CoreV1().PersistentVolumeClaims(namespace).Get(context.TODO(), pvcName, metav1.GetOptions{})
			if err != nil {
				return false, "", err
			}
			capacity, ok := pvc.Status.Capacity[corev1.ResourceStorage]
			if !ok {
				return false, fmt.Sprintf("pvc %s has no reported capacity yet", pvcName), nil
			}
			return capacity.Cmp(desired) >= 0, fmt.Sprintf("pvc %s capacity %s", pvcName, capacity.String()), nil
		})
}

// WaitForSnapshotReady polls until the VolumeSnapshot reports readyToUse.
// Snapshots are read through kubectl because their CRD types are not part of
// the typed clientset.
func (k8sh *K8sHelper) WaitForSnapshotReady(ctx context.Context, namespace, snapshotName string, timeout time.Duration) (poller.Outcome, error) {
	settings := k8sh.PollSettings(timeout)
	// the status block takes a moment to appear, which kubectl reports as
	// an empty result rather than an error
	return poller.Poll(ctx, settings, fmt.Sprintf("snapshot %s ready", snapshotName),
		func() (bool, string, error) {
			out, err := k8sh.Kubectl("-n", namespace, "get", "volumesnapshot", snapshotName,
				"-o", "jsonpath={.status.readyToUse}")
			if err != nil {
				return false, "", err
			}
			ready := strings.TrimSpace(out)
			return ready == "true", fmt.Sprintf("snapshot %s readyToUse=%q", snapshotName, ready), nil
		})
}

// CreateNamespace creates a namespace, tolerating one that already exists.
func (k8sh *K8sHelper) CreateNamespace(name string) error {
	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name}}
	_, err := k8sh.Clientset.CoreV1().Namespaces().Create(context.TODO(), ns, metav1.CreateOptions{})
	if err != nil && !kerrors.IsAlreadyExists(err) {
		return errors.Wrapf(err, "failed to create namespace %s", name)
	}
	return nil
}

// DeleteNamespace deletes a namespace if it exists; callers poll separately
// when they need to wait for it to be gone.
func (k8sh *K8sHelper) DeleteNamespace(name string) error {
	err := k8sh.Clientset.CoreV1().Namespaces().Delete(context.TODO(), name, metav1.DeleteOptions{})
	if err != nil && !kerrors.IsNotFound(err) {
		return errors.Wrapf(err, "failed to delete namespace %s", name)
	}
	return nil
}

// CreatePVC creates a claim with the given storage class, access mode and
// size, tolerating one that already exists.
func (k8sh *K8sHelper) CreatePVC(namespace, name, storageClass string, accessMode corev1.PersistentVolumeAccessMode, size string) error {
	pvc := &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes:      []corev1.PersistentVolumeAccessMode{accessMode},
			StorageClassName: pointer.String(storageClass),
			Resources: corev1.ResourceRequirements{
				Requests: corev1.ResourceList{corev1.ResourceStorage: resource.MustParse(size)},
			},
		},
	}
	_, err := k8sh.Clientset.CoreV1().PersistentVolumeClaims(namespace).Create(context.TODO(), pvc, metav1.CreateOptions{})
	if err != nil && !kerrors.IsAlreadyExists(err) {
		return errors.Wrapf(err, "failed to create pvc %s in %s", name, namespace)
	}
	return nil
}

// ExpandPVC raises the claim's storage request to the new size.
func (k8sh *K8sHelper) ExpandPVC(namespace, name, newSize string) error {
	pvcs := k8sh.Clientset.CoreV1().PersistentVolumeClaims(namespace)
	pvc, err := pvcs.Get(context.TODO(), name, metav1.GetOptions{})
	if err != nil {
		return errors.Wrapf(err, "failed to get pvc %s in %s", name, namespace)
	}
	pvc.Spec.Resources.Requests[corev1.ResourceStorage] = resource.MustParse(newSize)
	if _, err := pvcs.Update(context.TODO(), pvc, metav1.UpdateOptions{}); err != nil {
		return errors.Wrapf(err, "failed to expand pvc %s to %s", name, newSize)
	}
	return nil
}

// CreatePodWithPVC starts a long-sleeping busybox pod with the claim mounted
// at the given path, tolerating a pod that already exists.
func (k8sh *K8sHelper) CreatePodWithPVC(namespace, podName, pvcName, mountPath string, labels map[string]string) error {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: podName, Namespace: namespace, Labels: labels},
		Spec: corev1.PodSpec{
			TerminationGracePeriodSeconds: pointer.Int64(5),
			Containers: []corev1.Container{{
				Name:         "worker",
				Image:        "busybox",
				Command:      []string{"sleep", "3600"},
				VolumeMounts: []corev1.VolumeMount{{Name: "vol", MountPath: mountPath}},
			}},
			Volumes: []corev1.Volume{{
				Name: "vol",
				VolumeSource: corev1.VolumeSource{
					PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{ClaimName: pvcName},
				},
			}},
		},
	}
	_, err := k8sh.Clientset.CoreV1().Pods(namespace).Create(context.TODO(), pod, metav1.CreateOptions{})
	if err != nil && !kerrors.IsAlreadyExists(err) {
		return errors.Wrapf(err, "failed to create pod %s in %s", podName, namespace)
	}
	return nil
}

// CreatePodWithImage starts a bare pod running the given image with no
// command override, optionally pinned to a node by selector, tolerating a pod
// that already exists. Scheduling-policy scenarios use it with a pause image.
func (k8sh *K8sHelper) CreatePodWithImage(namespace, podName, image string, labels, nodeSelector map[string]string) error {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: podName, Namespace: namespace, Labels: labels},
		Spec: corev1.PodSpec{
			TerminationGracePeriodSeconds: pointer.Int64(5),
			NodeSelector:                  nodeSelector,
			Containers: []corev1.Container{{
				Name:  "main",
				Image: image,
			}},
		},
	}
	_, err := k8sh.Clientset.CoreV1().Pods(namespace).Create(context.TODO(), pod, metav1.CreateOptions{})
	if err != nil && !kerrors.IsAlreadyExists(err) {
		return errors.Wrapf(err, "failed to create pod %s in %s", podName, namespace)
	}
	return nil
}

// GetDeploymentPodsOnNode lists pods of a deployment-style selector that are
// scheduled on the given node.
func (k8sh *K8sHelper) GetDeploymentPodsOnNode(namespace, label, nodeName string) ([]string, error) {
	pods, err := k8sh.Clientset.CoreV1().Pods(namespace).List(context.TODO(), metav1.ListOptions{
		LabelSelector: label,
		FieldSelector: "spec.nodeName=" + nodeName,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s pods on node %s", label, nodeName)
	}
	names := make([]string, 0, len(pods.Items))
	for i := range pods.Items {
		names = append(names, pods.Items[i].Name)
	}
	return names, nil
}

// Md5InPod computes the md5 of a file inside a pod, used for before/after
// data integrity checks.
func (k8sh *K8sHelper) Md5InPod(namespace, podName, path string) (string, error) {
	out, err := k8sh.ExecInPod(namespace, podName, "md5sum", path)
	if err != nil {
		return "", err
	}
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return "", errors.Errorf("unexpected md5sum output %q", out)
	}
	return fields[0], nil
}
