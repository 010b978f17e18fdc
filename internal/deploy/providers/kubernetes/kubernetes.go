// Package kubernetes deploys projects as Deployments plus ClusterIP
// Services in a target namespace. It works against kubernetes.Interface
// so tests can use the fake clientset.
package kubernetes

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"conductor/internal/deploy"
)

const (
	providerName = "kubernetes"

	appLabel      = "app"
	managedByKey  = "app.kubernetes.io/managed-by"
	managedByName = "conductor"

	containerPort = 8080
	servicePort   = 80
)

// Provider serves the "kubernetes" platform.
type Provider struct {
	client    kubernetes.Interface
	namespace string
}

// New wraps an existing clientset.
func New(client kubernetes.Interface, namespace string) *Provider {
	if namespace == "" {
		namespace = corev1.NamespaceDefault
	}
	return &Provider{client: client, namespace: namespace}
}

// NewFromKubeconfig builds a provider from a kubeconfig file path. An
// empty path falls back to the usual loading rules.
func NewFromKubeconfig(kubeconfigPath, namespace string) (*Provider, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfigPath != "" {
		rules.ExplicitPath = kubeconfigPath
	}
	config, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, nil).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("loading kubeconfig: %w", err)
	}
	client, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("creating kubernetes client: %w", err)
	}
	return New(client, namespace), nil
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) Capabilities() deploy.Capabilities {
	return deploy.Capabilities{
		Platform:     "kubernetes",
		Environments: []deploy.Environment{deploy.EnvPreview, deploy.EnvProduction},
		ProjectHints: []string{"k8s", "deployment.yaml", "Chart.yaml"},
	}
}

// Execute creates a Deployment and a matching Service, both named after
// the deployment id. Production runs two replicas, preview one.
func (p *Provider) Execute(ctx context.Context, req deploy.ExecuteRequest) (*deploy.ExecuteOutcome, error) {
	name := req.Preparation.DeploymentID
	replicas := int32(1)
	if req.Config.Environment == deploy.EnvProduction {
		replicas = 2
	}

	labels := map[string]string{
		appLabel:     name,
		managedByKey: managedByName,
	}

	deployment := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: p.namespace, Labels: labels},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{MatchLabels: map[string]string{appLabel: name}},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{
						Name:  "app",
						Image: imageTag(req.Config),
						Env:   envVars(req.Preparation.EnvVars),
						Ports: []corev1.ContainerPort{{ContainerPort: containerPort}},
					}},
				},
			},
		},
	}

	if _, err := p.client.AppsV1().Deployments(p.namespace).Create(ctx, deployment, metav1.CreateOptions{}); err != nil {
		return nil, fmt.Errorf("creating deployment %s: %w", name, err)
	}

	service := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: p.namespace, Labels: labels},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{appLabel: name},
			Ports: []corev1.ServicePort{{
				Port:       servicePort,
				TargetPort: intstr.FromInt32(containerPort),
			}},
		},
	}
	if _, err := p.client.CoreV1().Services(p.namespace).Create(ctx, service, metav1.CreateOptions{}); err != nil {
		return nil, fmt.Errorf("creating service %s: %w", name, err)
	}

	url := fmt.Sprintf("http://%s.%s.svc.cluster.local", name, p.namespace)
	return &deploy.ExecuteOutcome{
		URL: url,
		// Rollout is asynchronous; readiness is observed via Status.
		Status: deploy.StatusInProgress,
		Logs: []string{
			fmt.Sprintf("created deployment %s with %d replica(s)", name, replicas),
			"created service " + name,
		},
		Metadata: map[string]any{
			"namespace": p.namespace,
			"replicas":  replicas,
		},
	}, nil
}

// Status reports rollout progress: succeeded once every desired replica
// is ready, in progress before that.
func (p *Provider) Status(ctx context.Context, deploymentID string) (*deploy.Result, error) {
	d, err := p.client.AppsV1().Deployments(p.namespace).Get(ctx, deploymentID, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, &deploy.DeploymentNotFoundError{DeploymentID: deploymentID}
		}
		return nil, fmt.Errorf("getting deployment %s: %w", deploymentID, err)
	}

	desired := int32(1)
	if d.Spec.Replicas != nil {
		desired = *d.Spec.Replicas
	}
	status := deploy.StatusInProgress
	if d.Status.ReadyReplicas >= desired {
		status = deploy.StatusSucceeded
	}

	return &deploy.Result{
		DeploymentID: deploymentID,
		Platform:     "kubernetes",
		Status:       status,
		URL:          fmt.Sprintf("http://%s.%s.svc.cluster.local", deploymentID, p.namespace),
		CreatedAt:    d.CreationTimestamp.Time,
		Metadata: map[string]any{
			"namespace":     p.namespace,
			"readyReplicas": d.Status.ReadyReplicas,
		},
	}, nil
}

// Cancel deletes the Deployment and its Service.
func (p *Provider) Cancel(ctx context.Context, deploymentID string) error {
	err := p.client.AppsV1().Deployments(p.namespace).Delete(ctx, deploymentID, metav1.DeleteOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return &deploy.DeploymentNotFoundError{DeploymentID: deploymentID}
		}
		return fmt.Errorf("deleting deployment %s: %w", deploymentID, err)
	}
	if err := p.client.CoreV1().Services(p.namespace).Delete(ctx, deploymentID, metav1.DeleteOptions{}); err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("deleting service %s: %w", deploymentID, err)
	}
	return nil
}

func imageTag(cfg deploy.Config) string {
	name := strings.ToLower(filepath.Base(filepath.Clean(cfg.ProjectPath)))
	return fmt.Sprintf("%s:%s", name, cfg.Environment)
}

func envVars(vars map[string]string) []corev1.EnvVar {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]corev1.EnvVar, 0, len(keys))
	for _, k := range keys {
		out = append(out, corev1.EnvVar{Name: k, Value: vars[k]})
	}
	return out
}
